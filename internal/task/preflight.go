package task

import (
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"
)

// CommandNotFoundError reports a command that failed the pre-dispatch
// PATH lookup.
type CommandNotFoundError struct {
	Command string
	Reason  string
}

func (e *CommandNotFoundError) Error() string {
	return fmt.Sprintf("Failed to execute command '%s': %s", e.Command, e.Reason)
}

// LookupTarget picks the executable to probe for a command string. A
// command already routed through "sh -c" only needs the shell itself;
// otherwise the first whitespace-separated token is the program.
func LookupTarget(command string) string {
	if strings.HasPrefix(command, "sh -c") {
		return "sh"
	}
	if fields := strings.Fields(command); len(fields) > 0 {
		return fields[0]
	}
	return command
}

// checkCommands verifies that every distinct command in the batch resolves
// in PATH. One miss fails the whole batch, before any process is spawned.
func checkCommands(items []WorkItem) error {
	seen := make(map[string]struct{}, len(items))
	var g errgroup.Group
	for _, item := range items {
		if _, ok := seen[item.Command]; ok {
			continue
		}
		seen[item.Command] = struct{}{}

		command := item.Command
		g.Go(func() error {
			if _, err := exec.LookPath(LookupTarget(command)); err != nil {
				return &CommandNotFoundError{Command: command, Reason: "Command not found in PATH"}
			}
			return nil
		})
	}
	return g.Wait()
}
