package browse

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/frame"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/section"
)

// fdes caches the parsed .debug_frame index between frame commands.
var fdes frame.FrameDescriptionEntries

var frameCmd = &cobra.Command{
	Use:   "frame [pc]",
	Short: "look up call frame information",
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupFrame,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if Target == nil {
			return errors.New("no executable opened")
		}
		if fdes == nil {
			sec, err := Target.Section(section.KindFrame)
			if err != nil {
				return err
			}
			if fdes, err = frame.Parse(sec, 0); err != nil {
				return err
			}
		}

		if len(args) == 0 {
			for _, fde := range fdes {
				fmt.Printf("FDE [%#x, %#x)\n", fde.Begin(), fde.End())
			}
			return nil
		}

		pc, err := strconv.ParseUint(args[0], 0, 64)
		if err != nil {
			return fmt.Errorf("invalid pc: %v", err)
		}
		fde, err := fdes.FDEForPC(pc)
		if err != nil {
			return err
		}
		fmt.Printf("FDE [%#x, %#x) cie.ra=%d\n", fde.Begin(), fde.End(), fde.CIE.ReturnAddressRegister)
		return nil
	},
}

func init() {
	browseRootCmd.AddCommand(frameCmd)
}
