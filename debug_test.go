package wiremux

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wiremux/wiremux/internal/sync"
)

func TestPrintDebugger(t *testing.T) {
	var buf bytes.Buffer
	d := Debugger(&printDebugger{out: &buf, mu: new(sync.Mutex)})

	d.Log("started")
	scoped := d.WithContext("[wiremux/conn] c1")
	scoped.Log("closed", "transport close")

	assert.Equal(t, "started\n[wiremux/conn] c1: closed: transport close\n", buf.String())

	// Deriving a scoped debugger never mutates the parent.
	d.Log("plain")
	assert.True(t, strings.HasSuffix(buf.String(), "\nplain\n"))
}

func TestNoopDebugger(t *testing.T) {
	d := NewNoopDebugger()
	assert.NotPanics(t, func() {
		d.Log("ignored", 1, 2)
		d.WithContext("x").Log("still ignored")
	})
}
