package log

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/apex/log"
)

// DefaultLevel is used when neither the config nor SETUP_GO_LOG set a level
const DefaultLevel = "info"

// Init sets up Apex with the workflow command handler writing to w and a log
// level taken from level, then the SETUP_GO_LOG env variable.
func Init(w io.Writer, level string) log.Interface {
	if level == "" {
		level = os.Getenv("SETUP_GO_LOG")
	}

	if w == nil {
		w = os.Stdout
	}

	return New(w, level)
}

// New creates a logger writing to w at the given level. Unknown levels fall
// back to DefaultLevel.
func New(w io.Writer, level string) *log.Logger {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl, _ = log.ParseLevel(DefaultLevel)
	}

	logger := &log.Logger{
		Handler: NewHandler(w),
		Level:   lvl,
	}

	log.Log = logger

	return logger
}

// Handler renders entries the way CI runners understand them. Warnings and
// errors become workflow commands (::warning:: / ::error::) so they are
// annotated on the job, debug lines use ::debug:: and everything else is a
// plain line.
type Handler struct {
	mu sync.Mutex
	w  io.Writer
}

// NewHandler creates a handler writing to w
func NewHandler(w io.Writer) *Handler {
	return &Handler{w: w}
}

// commandEscaper encodes the characters that would end a workflow command early
var commandEscaper = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")

// HandleLog implements the log.Handler interface
func (h *Handler) HandleLog(e *log.Entry) error {
	var prefix string

	switch e.Level {
	case log.DebugLevel:
		prefix = "::debug::"
	case log.WarnLevel:
		prefix = "::warning::"
	case log.ErrorLevel, log.FatalLevel:
		prefix = "::error::"
	}

	var b strings.Builder
	b.WriteString(e.Message)

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields[name])
	}

	line := b.String()
	if prefix != "" {
		line = prefix + commandEscaper.Replace(line)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := fmt.Fprintln(h.w, line)
	return err
}
