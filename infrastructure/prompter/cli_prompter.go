// Package prompter asks a human to confirm workspace grants.
package prompter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/secure-app-framework/saf-broker/domain/ports"
)

var _ ports.Prompter = (*CliPrompter)(nil)

// CliPrompter implements ports.Prompter for CLI environments.
type CliPrompter struct {
	in  io.Reader
	out io.Writer
}

// NewCliPrompter creates a new CliPrompter.
func NewCliPrompter(in io.Reader, out io.Writer) *CliPrompter {
	return &CliPrompter{in: in, out: out}
}

// IsInteractive checks if the input is a terminal.
func (p *CliPrompter) IsInteractive() bool {
	if f, ok := p.in.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil {
			return false
		}
		return (stat.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// ConfirmWorkspace asks the user to grant access to dir. Anything other than
// an explicit yes is a denial.
func (p *CliPrompter) ConfirmWorkspace(dir string) (granted bool, always bool, err error) {
	_, _ = fmt.Fprintf(p.out, "A component requests access to the workspace:\n  %s\n", dir)
	_, _ = fmt.Fprintf(p.out, "It will be able to read and write files below this directory.\n")
	_, _ = fmt.Fprintf(p.out, "Allow? [y/n/always]: ")

	scanner := bufio.NewScanner(p.in)
	if scanner.Scan() {
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "y", "yes":
			return true, false, nil
		case "a", "always":
			return true, true, nil
		default:
			return false, false, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, false, err
	}
	return false, false, io.EOF
}

// NonInteractiveError explains how to grant dir when no terminal is attached.
func NonInteractiveError(dir string) error {
	return fmt.Errorf("workspace %s is not granted and no terminal is attached; run `saf-broker workspace grant %s` first", dir, dir)
}
