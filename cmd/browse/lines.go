package browse

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/line"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/section"
)

var linesCmd = &cobra.Command{
	Use:     "lines",
	Short:   "list the line tables and their rows",
	Aliases: []string{"l"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupLine,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed, err := parseTables()
		if err != nil {
			return err
		}

		for i, table := range parsed {
			fmt.Printf("table %d: version=%d files=%d\n", i, table.Version(), len(table.Files()))
			it := table.Begin()
			for it.Next() {
				row := it.Row()
				if row.EndSequence {
					continue
				}
				fmt.Printf("  %#-14x %s\n", row.Address, row.Description())
			}
			if err := it.Err(); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	browseRootCmd.AddCommand(linesCmd)
}

// parseTables parses every line table in .debug_line once and caches
// them for the file/find commands.
func parseTables() ([]*line.Table, error) {
	if tables != nil {
		return tables, nil
	}
	if Target == nil {
		return nil, errors.New("no executable opened")
	}

	sec, err := Target.Section(section.KindLine)
	if err != nil {
		return nil, err
	}
	for off := 0; off < sec.Len(); {
		table, err := line.NewTable(sec, off, Target.AddrSize(), "", "", Target)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
		off = table.EndOffset()
	}
	return tables, nil
}
