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

	"github.com/hitzhangjie/godwarf/pkg/dwarf/frame"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/section"
	"github.com/hitzhangjie/godwarf/pkg/objfile"
)

// frameCmd represents the frame command
var frameCmd = &cobra.Command{
	Use:   "frame <executable>",
	Short: "dump call frame information from .debug_frame",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("expected one executable argument")
		}
		f, err := objfile.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		sec, err := f.Section(section.KindFrame)
		if err != nil {
			return err
		}
		base, _ := cmd.Flags().GetUint64("static-base")

		fdes, err := frame.Parse(sec, base)
		if err != nil {
			return err
		}
		for _, fde := range fdes {
			fmt.Printf("FDE [%#x, %#x) cie.ra=%d instructions=%d bytes\n",
				fde.Begin(), fde.End(), fde.CIE.ReturnAddressRegister, len(fde.Instructions))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(frameCmd)

	frameCmd.Flags().Uint64("static-base", 0, "load bias added to FDE addresses")
}
