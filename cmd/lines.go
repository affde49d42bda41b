/*
Copyright © 2021 hit.zhangjie@gmail.com

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/line"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/section"
	"github.com/hitzhangjie/godwarf/pkg/objfile"
)

// linesCmd represents the lines command
var linesCmd = &cobra.Command{
	Use:   "lines <executable>",
	Short: "dump the line tables from .debug_line",
	Long: `dump the line tables from .debug_line.

Each table's program is run to completion and the reconstructed
address/file/line rows are printed in program order. With --addr, only
the row covering the given address is printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("expected one executable argument")
		}
		f, err := objfile.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		sec, err := f.Section(section.KindLine)
		if err != nil {
			return err
		}

		compDir, _ := cmd.Flags().GetString("comp-dir")
		addr, _ := cmd.Flags().GetUint64("addr")
		findAddr := cmd.Flags().Changed("addr")

		for off := 0; off < sec.Len(); {
			table, err := line.NewTable(sec, off, f.AddrSize(), compDir, "", f)
			if err != nil {
				return err
			}

			if findAddr {
				row, ok, err := table.FindAddress(addr)
				if err != nil {
					return err
				}
				if ok {
					fmt.Printf("%#x  %s\n", row.Address, row.Description())
					return nil
				}
			} else {
				if err := printTable(off, table); err != nil {
					return err
				}
			}
			off = table.EndOffset()
		}

		if findAddr {
			fmt.Fprintf(os.Stderr, "no line table row covers %#x\n", addr)
		}
		return nil
	},
}

func printTable(off int, table *line.Table) error {
	fmt.Printf("line table @%#x: version=%d\n", off, table.Version())

	it := table.Begin()
	for it.Next() {
		row := it.Row()
		if viper.GetBool("verbose") {
			fmt.Printf("  %#-14x %-40s stmt=%-5t bb=%-5t pe=%-5t eb=%-5t isa=%d disc=%d end_seq=%t\n",
				row.Address, row.Description(), row.IsStmt, row.BasicBlock,
				row.PrologueEnd, row.EpilogueBegin, row.ISA, row.Discriminator, row.EndSequence)
		} else if !row.EndSequence {
			fmt.Printf("  %#-14x %s\n", row.Address, row.Description())
		}
	}
	if err := it.Err(); err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		for i, file := range table.Files() {
			fmt.Printf("  file[%d] = %s\n", i, file.Path)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(linesCmd)

	linesCmd.Flags().String("comp-dir", "", "compilation directory used to resolve relative paths")
	linesCmd.Flags().Uint64("addr", 0, "print only the row covering this address")
}
