package browse

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/line"
	"github.com/hitzhangjie/godwarf/pkg/objfile"
)

const (
	cmdGroupAnnotation = "cmd_group_annotation"

	cmdGroupLine   = "line"
	cmdGroupRange  = "range"
	cmdGroupFrame  = "frame"
	cmdGroupOthers = "session"

	historyFile = ".godwarf_history"

	descShort = "godwarf interactive browsing commands"
)

// groupTitles fixes the order and headings of the help overview;
// commands carrying an unknown (or no) group annotation land in the
// session group.
var groupTitles = []struct{ key, title string }{
	{cmdGroupLine, "line tables"},
	{cmdGroupRange, "range lists"},
	{cmdGroupFrame, "call frames"},
	{cmdGroupOthers, "session"},
}

var browseRootCmd = &cobra.Command{
	Use:   "browse",
	Short: descShort,
}

var (
	// Target is the executable opened by the browse command; every
	// shell command reads from it.
	Target *objfile.File

	// tables caches the line tables parsed by the first command that
	// needs them (`lines`, `file`, `find`, or `file` completion) so
	// later commands can refer to them by index; it is not refreshed.
	tables []*line.Table

	CurrentSession *Session
)

// Session drives the interactive shell: a liner prompt dispatching
// into the browse command tree. An empty line repeats the last
// command, ctrl-C abandons the current line, ctrl-D (or `exit`) ends
// the session. History persists across sessions in ~/.godwarf_history.
type Session struct {
	root  *cobra.Command
	liner *liner.State

	last        string
	quit        bool
	historyPath string
}

// NewSession creates the shell around the browse command tree.
func NewSession() *Session {
	browseRootCmd.SetHelpFunc(printHelp)

	s := &Session{
		root:  browseRootCmd,
		liner: liner.NewLiner(),
	}
	s.liner.SetCompleter(s.complete)
	s.liner.SetTabCompletionStyle(liner.TabPrints)
	s.liner.SetCtrlCAborts(true)

	if home, err := homedir.Dir(); err == nil {
		s.historyPath = filepath.Join(home, historyFile)
		if f, err := os.Open(s.historyPath); err == nil {
			s.liner.ReadHistory(f)
			f.Close()
		}
	}
	return s
}

// Start runs the prompt loop until Stop is called or input ends.
func (s *Session) Start() {
	defer s.close()

	for !s.quit {
		input, err := s.liner.Prompt(s.prompt())
		switch err {
		case nil:
		case liner.ErrPromptAborted:
			// ctrl-C abandons the line and forgets the repeat target.
			s.last = ""
			continue
		case io.EOF:
			fmt.Println()
			return
		default:
			fmt.Fprintf(os.Stderr, "read command: %v\n", err)
			return
		}

		input = strings.TrimSpace(input)
		if input == "" {
			input = s.last
		} else {
			s.liner.AppendHistory(input)
		}
		if input == "" {
			continue
		}
		s.last = input

		s.root.SetArgs(strings.Fields(input))
		s.root.Execute()
	}
}

// Stop ends the prompt loop after the current command finishes.
func (s *Session) Stop() {
	s.quit = true
}

func (s *Session) prompt() string {
	if Target != nil {
		return fmt.Sprintf("godwarf %s> ", filepath.Base(Target.Path()))
	}
	return "godwarf> "
}

func (s *Session) close() {
	if s.historyPath != "" {
		if f, err := os.Create(s.historyPath); err == nil {
			s.liner.WriteHistory(f)
			f.Close()
		}
	}
	s.liner.Close()
}

// complete suggests command names for the first word, and for the
// `file` command also the table and file indices that are actually
// valid for the opened executable, so the user does not have to run
// `lines` first just to learn which indices exist.
func (s *Session) complete(input string) []string {
	words := strings.Fields(input)
	if len(words) == 0 {
		return commandNames("")
	}
	if len(words) == 1 && !strings.HasSuffix(input, " ") {
		return commandNames(words[0])
	}

	args := words[1:]
	if strings.HasSuffix(input, " ") {
		args = append(args, "")
	}
	switch words[0] {
	case "file", "f":
		return completeFileArgs(words[0], args)
	}
	return nil
}

func commandNames(prefix string) []string {
	var names []string
	for _, c := range browseRootCmd.Commands() {
		name := strings.Split(c.Use, " ")[0]
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		for _, alias := range c.Aliases {
			if strings.HasPrefix(alias, prefix) {
				names = append(names, alias)
			}
		}
	}
	sort.Strings(names)
	return names
}

// completeFileArgs completes `file <table> <index>`. Each suggestion
// is the whole command line, since liner replaces the full input.
func completeFileArgs(head string, args []string) []string {
	parsed, err := parseTables()
	if err != nil {
		return nil
	}

	var out []string
	switch len(args) {
	case 1:
		for i := range parsed {
			if idx := strconv.Itoa(i); strings.HasPrefix(idx, args[0]) {
				out = append(out, fmt.Sprintf("%s %s ", head, idx))
			}
		}
	case 2:
		ti, err := strconv.Atoi(args[0])
		if err != nil || ti < 0 || ti >= len(parsed) {
			return nil
		}
		for i := range parsed[ti].Files() {
			if idx := strconv.Itoa(i); strings.HasPrefix(idx, args[1]) {
				out = append(out, fmt.Sprintf("%s %s %s", head, args[0], idx))
			}
		}
	}
	return out
}

// printHelp is the shared help func: a subcommand prints its own
// usage, the root prints the grouped command overview.
func printHelp(cmd *cobra.Command, args []string) {
	if cmd != browseRootCmd {
		fmt.Println(cmd.Short)
		fmt.Printf("usage: %s\n", cmd.Use)
		if usage := cmd.Flags().FlagUsages(); usage != "" {
			fmt.Print(usage)
		}
		return
	}

	fmt.Println(descShort)
	fmt.Println()
	fmt.Print(helpOverview(cmd))
}

func helpOverview(root *cobra.Command) string {
	known := map[string]bool{}
	for _, g := range groupTitles {
		known[g.key] = true
	}

	var b strings.Builder
	for _, g := range groupTitles {
		var rows []string
		for _, c := range root.Commands() {
			group := c.Annotations[cmdGroupAnnotation]
			if !known[group] {
				group = cmdGroupOthers
			}
			if group != g.key {
				continue
			}
			rows = append(rows, fmt.Sprintf("  %-10s %s", c.Name(), c.Short))
		}
		if len(rows) == 0 {
			continue
		}
		sort.Strings(rows)
		b.WriteString(g.title + ":\n")
		b.WriteString(strings.Join(rows, "\n"))
		b.WriteString("\n\n")
	}
	return b.String()
}
