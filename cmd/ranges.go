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

	"github.com/hitzhangjie/godwarf/pkg/dwarf/rangelist"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/section"
	"github.com/hitzhangjie/godwarf/pkg/objfile"
)

// rangesCmd represents the ranges command
var rangesCmd = &cobra.Command{
	Use:   "ranges <executable>",
	Short: "decode a range list from .debug_ranges or .debug_rnglists",
	Long: `decode a range list from .debug_ranges or .debug_rnglists.

--offset selects where the list starts within the section; --base sets
the initial base address (usually the compilation unit's low_pc). With
--v5 the DWARF5 tagged encoding of .debug_rnglists is decoded instead
of the pre-v5 address-pair encoding.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("expected one executable argument")
		}
		f, err := objfile.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		offset, _ := cmd.Flags().GetUint64("offset")
		base, _ := cmd.Flags().GetUint64("base")
		v5, _ := cmd.Flags().GetBool("v5")

		kind, enc := section.KindRanges, rangelist.PreV5
		if v5 {
			kind, enc = section.KindRngLists, rangelist.V5
		}
		sec, err := f.Section(kind)
		if err != nil {
			return err
		}

		list := rangelist.New(sec, int(offset), f.AddrSize(), base, enc)
		it := list.Begin()
		for it.Next() {
			r := it.Range()
			fmt.Printf("[%#x, %#x)\n", r.Low, r.High)
		}
		return it.Err()
	},
}

func init() {
	rootCmd.AddCommand(rangesCmd)

	rangesCmd.Flags().Uint64("offset", 0, "offset of the range list within the section")
	rangesCmd.Flags().Uint64("base", 0, "initial base address (the unit's low_pc)")
	rangesCmd.Flags().Bool("v5", false, "decode the DWARF5 .debug_rnglists encoding")
}
