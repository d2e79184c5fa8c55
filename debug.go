package wiremux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xiegeo/coloredgoroutine"

	"github.com/wiremux/wiremux/internal/sync"
)

// Debugger receives diagnostic output from the server internals.
// WithContext derives a debugger whose lines are prefixed with the
// component it was handed to ("[wiremux/conn] <id>" and so on).
type Debugger interface {
	Log(msg string, v ...any)
	WithContext(context string) Debugger
}

type noopDebugger struct{}

func NewNoopDebugger() Debugger { return noopDebugger{} }

func (d noopDebugger) Log(msg string, v ...any) {}

func (d noopDebugger) WithContext(context string) Debugger { return d }

// printDebugger writes one line per Log call, colored per goroutine so
// interleaved output from concurrent connections stays readable.
type printDebugger struct {
	out     io.Writer
	mu      *sync.Mutex
	context string
}

func NewPrintDebugger() Debugger {
	return &printDebugger{
		out: coloredgoroutine.Colors(os.Stdout),
		mu:  new(sync.Mutex),
	}
}

func (d *printDebugger) Log(msg string, v ...any) {
	var b strings.Builder
	if d.context != "" {
		b.WriteString(d.context)
		b.WriteString(": ")
	}
	b.WriteString(msg)
	for _, value := range v {
		fmt.Fprintf(&b, ": %v", value)
	}
	b.WriteByte('\n')

	d.mu.Lock()
	defer d.mu.Unlock()
	io.WriteString(d.out, b.String())
}

func (d *printDebugger) WithContext(context string) Debugger {
	n := *d
	n.context = context
	return &n
}
