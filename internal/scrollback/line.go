package scrollback

import (
	"strings"
	"time"
	"unsafe"

	"github.com/rivo/uniseg"

	"github.com/dshills/termcore/internal/ansi"
)

// LineType tags the origin of a line.
type LineType uint8

const (
	// LineNormal is process output.
	LineNormal LineType = iota
	// LineError is stderr output or a failure report.
	LineError
	// LineInput is an echoed command.
	LineInput
	// LineSystem is a lifecycle notice from the terminal itself.
	LineSystem
	// LineDebug is diagnostic output.
	LineDebug
)

func (t LineType) String() string {
	switch t {
	case LineError:
		return "error"
	case LineInput:
		return "input"
	case LineSystem:
		return "system"
	case LineDebug:
		return "debug"
	default:
		return "normal"
	}
}

// Fixed per-line cost added to the text size when estimating memory.
var lineOverhead = int(unsafe.Sizeof(Line{}))

// Line is one rendered line of terminal output.
type Line struct {
	Spans []ansi.Span
	Type  LineType
	Time  time.Time

	text string
}

// NewLine builds a line from decoded spans.
func NewLine(typ LineType, spans []ansi.Span) Line {
	var sb strings.Builder
	for _, s := range spans {
		sb.WriteString(s.Text)
	}
	return Line{Spans: spans, Type: typ, Time: time.Now(), text: sb.String()}
}

// TextLine builds an unstyled line.
func TextLine(typ LineType, text string) Line {
	var spans []ansi.Span
	if text != "" {
		kind := ansi.SpanText
		if typ == LineError {
			kind = ansi.SpanError
		}
		spans = []ansi.Span{{Text: text, Kind: kind}}
	}
	return Line{Spans: spans, Type: typ, Time: time.Now(), text: text}
}

// Text returns the line content without styling.
func (l Line) Text() string { return l.text }

// Width returns the display width in terminal cells.
func (l Line) Width() int { return uniseg.StringWidth(l.text) }

// Memory returns the estimated size of the line in bytes.
func (l Line) Memory() int { return len(l.text) + lineOverhead }
