package browse

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/rangelist"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/section"
)

var rangesCmd = &cobra.Command{
	Use:     "ranges <offset> [base]",
	Short:   "decode a pre-v5 range list from .debug_ranges",
	Aliases: []string{"r"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupRange,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return printRangeList(args, section.KindRanges, rangelist.PreV5)
	},
}

var rnglistsCmd = &cobra.Command{
	Use:   "rnglists <offset> [base]",
	Short: "decode a DWARF5 range list from .debug_rnglists",
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupRange,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return printRangeList(args, section.KindRngLists, rangelist.V5)
	},
}

func printRangeList(args []string, kind section.Kind, enc rangelist.Encoding) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("expected <offset> [base]")
	}
	if Target == nil {
		return errors.New("no executable opened")
	}

	offset, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return fmt.Errorf("invalid offset: %v", err)
	}
	var base uint64
	if len(args) == 2 {
		base, err = strconv.ParseUint(args[1], 0, 64)
		if err != nil {
			return fmt.Errorf("invalid base address: %v", err)
		}
	}

	sec, err := Target.Section(kind)
	if err != nil {
		return err
	}

	list := rangelist.New(sec, int(offset), Target.AddrSize(), base, enc)
	it := list.Begin()
	for it.Next() {
		r := it.Range()
		fmt.Printf("[%#x, %#x)\n", r.Low, r.High)
	}
	return it.Err()
}

func init() {
	browseRootCmd.AddCommand(rangesCmd)
	browseRootCmd.AddCommand(rnglistsCmd)
}
