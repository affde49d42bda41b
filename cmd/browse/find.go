package browse

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var findCmd = &cobra.Command{
	Use:   "find <addr>",
	Short: "find the source line covering an address",
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupLine,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("expected one address argument")
		}
		addr, err := strconv.ParseUint(args[0], 0, 64)
		if err != nil {
			return fmt.Errorf("invalid address: %v", err)
		}

		parsed, err := parseTables()
		if err != nil {
			return err
		}
		for _, table := range parsed {
			row, ok, err := table.FindAddress(addr)
			if err != nil {
				return err
			}
			if ok {
				fmt.Printf("%#x  %s\n", row.Address, row.Description())
				return nil
			}
		}
		fmt.Printf("no line table row covers %#x\n", addr)
		return nil
	},
}

func init() {
	browseRootCmd.AddCommand(findCmd)
}
