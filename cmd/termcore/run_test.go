package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dshills/termcore/internal/scrollback"
	"github.com/dshills/termcore/internal/theme"
)

func TestPrinterPendingClearsWiderPrompt(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf, theme: theme.Default()}

	p.pending("long prompt $ ")
	p.pending("long prompt $ ")
	p.pending("$ ")
	want := "\rlong prompt $ " + "\r$ " + strings.Repeat(" ", 12)
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

func TestPrinterPendingMeasuresCells(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf, theme: theme.Default(), color: true}

	p.pending("日本> ")
	buf.Reset()
	p.pending("> ")
	// the wide runes took four cells
	want := "\r> " + strings.Repeat(" ", 4) + "\x1b[4D"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

func TestPrinterLineResetsPending(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf, theme: theme.Default()}

	p.pending("long prompt $ ")
	p.line("done", scrollback.LineNormal)
	buf.Reset()
	p.pending("$ ")
	if buf.String() != "\r$ " {
		t.Errorf("expected no padding after a full line, got %q", buf.String())
	}
}

func TestPrinterSkipsInputWithoutEcho(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf, theme: theme.Default()}

	p.line("$ ls", scrollback.LineInput)
	p.line("file", scrollback.LineNormal)
	if buf.String() != "file\n" {
		t.Errorf("expected only output lines, got %q", buf.String())
	}
}
