package browse

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var fileCmd = &cobra.Command{
	Use:   "file <table> <index>",
	Short: "resolve a file index in a line table",
	Long: `resolve a file index in a line table.

The index is looked up in the table's file-name list; if the program
declares extra files via define_file, the program is run first so the
lookup sees them.`,
	Aliases: []string{"f"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupLine,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return errors.New("expected <table> <index>")
		}
		tableIdx, err := strconv.ParseUint(args[0], 0, 64)
		if err != nil {
			return fmt.Errorf("invalid table index: %v", err)
		}
		fileIdx, err := strconv.ParseUint(args[1], 0, 64)
		if err != nil {
			return fmt.Errorf("invalid file index: %v", err)
		}

		parsed, err := parseTables()
		if err != nil {
			return err
		}
		if tableIdx >= uint64(len(parsed)) {
			return fmt.Errorf("no line table %d (have %d)", tableIdx, len(parsed))
		}

		f, err := parsed[tableIdx].GetFile(fileIdx)
		if err != nil {
			return err
		}
		fmt.Printf("file[%d] = %s\n", fileIdx, f.Path)
		return nil
	},
}

func init() {
	browseRootCmd.AddCommand(fileCmd)
}
