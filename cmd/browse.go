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

	"github.com/hitzhangjie/godwarf/cmd/browse"
	"github.com/hitzhangjie/godwarf/pkg/objfile"
)

// browseCmd represents the browse command
var browseCmd = &cobra.Command{
	Use:   "browse <executable>",
	Short: "interactively browse DWARF debugging information",
	Long: `interactively browse DWARF debugging information.

Opens the executable and starts a shell with commands to walk line
tables, decode range lists and look up call frame entries.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("expected one executable argument")
		}
		f, err := objfile.Open(args[0])
		if err != nil {
			return err
		}
		browse.Target = f
		fmt.Printf("opened %s\n", f.Path())
		return nil
	},
	PostRunE: func(cmd *cobra.Command, args []string) error {
		session := browse.NewSession()
		browse.CurrentSession = session
		session.Start()
		return browse.Target.Close()
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
}
