package ci

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Outputs writes job-visible outputs
type Outputs struct {
	file string
	w    io.Writer
}

// NewOutputs creates an Outputs writer. When file is set outputs are appended
// to it as name=value lines, otherwise they are printed to w.
func NewOutputs(file string, w io.Writer) *Outputs {
	if w == nil {
		w = os.Stdout
	}

	return &Outputs{file: file, w: w}
}

// Set records a single output
func (o *Outputs) Set(name, value string) error {
	line, err := formatLine(name, value)
	if err != nil {
		return err
	}

	if o.file == "" {
		_, err := io.WriteString(o.w, line)
		return err
	}

	return appendLine(o.file, line)
}

// AppendFile appends name=value to a runner command file such as the one
// named by GITHUB_OUTPUT or GITHUB_STATE.
func AppendFile(path, name, value string) error {
	line, err := formatLine(name, value)
	if err != nil {
		return err
	}

	return appendLine(path, line)
}

// formatLine renders name=value, or the heredoc form for multi-line values
func formatLine(name, value string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("output name is required")
	}

	if strings.ContainsAny(name, "=\n") {
		return "", fmt.Errorf("invalid output name %q", name)
	}

	if strings.Contains(value, "\n") {
		return formatMultiline(name, value), nil
	}

	return name + "=" + value + "\n", nil
}

// formatMultiline uses the heredoc form the runner expects for values that
// span lines (cache paths are newline-joined).
func formatMultiline(name, value string) string {
	delim := "ghadelimiter_setup_go"
	for strings.Contains(value, delim) {
		delim += "_"
	}

	return name + "<<" + delim + "\n" + value + "\n" + delim + "\n"
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
