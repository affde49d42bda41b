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

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/line"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/section"
	"github.com/hitzhangjie/godwarf/pkg/objfile"
)

var dumpKinds = []section.Kind{
	section.KindInfo,
	section.KindAbbrev,
	section.KindLine,
	section.KindLineStr,
	section.KindStr,
	section.KindStrOffsets,
	section.KindAddr,
	section.KindRanges,
	section.KindRngLists,
	section.KindFrame,
}

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump <executable>",
	Short: "summarize the DWARF sections of an executable",
	Long: `summarize the DWARF sections of an executable: which .debug_*
sections are present, their sizes, and the header of every line table.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("expected one executable argument")
		}
		f, err := objfile.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		for _, kind := range dumpKinds {
			sec, err := f.Section(kind)
			if err != nil {
				continue
			}
			fmt.Printf(".%-20s %8d bytes\n", kind, sec.Len())
		}

		sec, err := f.Section(section.KindLine)
		if err != nil {
			return nil
		}
		for off := 0; off < sec.Len(); {
			table, err := line.NewTable(sec, off, f.AddrSize(), "", "", f)
			if err != nil {
				return err
			}
			fmt.Printf("line table @%#x: version=%d dirs=%d files=%d\n",
				off, table.Version(), len(table.IncludeDirectories()), len(table.Files()))
			if viper.GetBool("verbose") {
				for i, dir := range table.IncludeDirectories() {
					fmt.Printf("  dir[%d]  = %s\n", i, dir)
				}
				for i, file := range table.Files() {
					fmt.Printf("  file[%d] = %s\n", i, file.Path)
				}
			}
			off = table.EndOffset()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}
