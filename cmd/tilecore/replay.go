package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/minesight/tilecore/pkg/host"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay [script]",
	Short: "Run viewer commands against a headless session",
	Long: `Run viewer commands, one per line, against a session without a
renderer and print each reply. Arguments are separated by spaces; an argument
starting with '{' or '[' takes the rest of the line, so JSON can be passed
as is. Lines starting with '#' are skipped. Without a script, commands are
read from stdin.

  history.list
  measure.unit kilometer
  section.update {"direction": "y", "position": 12.5}`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		in := cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open script: %w", err)
			}
			defer f.Close()
			in = f
		}

		h, err := host.New(cmd.Context(), host.Options{ConfigDir: configDir, LogOutput: cmd.ErrOrStderr()})
		if err != nil {
			return err
		}
		defer func() {
			if cerr := h.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return replay(h, in, cmd.OutOrStdout())
	},
}

func replay(h *host.Host, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		command, args := splitCommand(line)
		fmt.Fprintln(out, h.Call(command, args...))
	}
	return sc.Err()
}

// splitCommand splits a script line into the command and its arguments.
func splitCommand(line string) (string, []string) {
	var args []string
	rest := line
	for rest != "" {
		rest = strings.TrimLeft(rest, " \t")
		if rest == "" {
			break
		}
		if rest[0] == '{' || rest[0] == '[' {
			args = append(args, rest)
			break
		}
		i := strings.IndexAny(rest, " \t")
		if i < 0 {
			args = append(args, rest)
			break
		}
		args = append(args, rest[:i])
		rest = rest[i:]
	}
	if len(args) == 0 {
		return "", nil
	}
	return args[0], args[1:]
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
