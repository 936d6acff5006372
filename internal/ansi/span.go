package ansi

import (
	"regexp"
	"strings"
)

// SpanKind tags what a span's text represents.
type SpanKind uint8

const (
	SpanText SpanKind = iota
	SpanLink
	SpanError
	SpanFileRef
)

func (k SpanKind) String() string {
	switch k {
	case SpanLink:
		return "link"
	case SpanError:
		return "error"
	case SpanFileRef:
		return "file"
	default:
		return "text"
	}
}

// Span is a run of text with one style.
type Span struct {
	Text  string   `json:"text"`
	Style Style    `json:"style"`
	Kind  SpanKind `json:"kind,omitempty"`
	// URL is the hyperlink target for SpanLink.
	URL string `json:"url,omitempty"`
	// EndOfLine marks the last span of a line.
	EndOfLine bool `json:"eol,omitempty"`
}

// Lines groups spans into complete lines using their EndOfLine marks.
// Spans after the last line end are returned as rest, to be prefixed to
// the next batch.
func Lines(spans []Span) (lines [][]Span, rest []Span) {
	start := 0
	for i, s := range spans {
		if !s.EndOfLine {
			continue
		}
		line := make([]Span, 0, i+1-start)
		for _, ls := range spans[start : i+1] {
			if ls.Text == "" {
				continue
			}
			ls.EndOfLine = false
			line = append(line, ls)
		}
		lines = append(lines, line)
		start = i + 1
	}
	if start < len(spans) {
		rest = append(rest, spans[start:]...)
	}
	return lines, rest
}

// PlainText concatenates span text, writing a newline at each line end.
func PlainText(spans []Span) string {
	var sb strings.Builder
	for _, s := range spans {
		sb.WriteString(s.Text)
		if s.EndOfLine {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// StripANSI removes escape sequences from s.
func StripANSI(s string) string {
	_, res := Step(State{}, s)
	return PlainText(res.Spans)
}

var fileRefPattern = regexp.MustCompile(`(?:\.{1,2}/|/|[A-Za-z]:\\)?[\w.\-/\\]*\w\.[A-Za-z0-9]{1,8}:\d+(?::\d+)?`)

var errorMarkers = []string{"error:", "Error:", "ERROR", "FAILED", "fatal:", "panic:"}

func isErrorText(text string, st Style) bool {
	if st.Fg.Kind == ColorNamed && (st.Fg.Index == Red || st.Fg.Index == BrightRed) {
		return true
	}
	for _, m := range errorMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// classify splits a plain run into text, error and file-reference spans.
func classify(text string, st Style) []Span {
	base := SpanText
	if isErrorText(text, st) {
		base = SpanError
	}

	locs := fileRefPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []Span{{Text: text, Style: st, Kind: base}}
	}

	spans := make([]Span, 0, 2*len(locs)+1)
	pos := 0
	for _, loc := range locs {
		if loc[0] > pos {
			spans = append(spans, Span{Text: text[pos:loc[0]], Style: st, Kind: base})
		}
		spans = append(spans, Span{Text: text[loc[0]:loc[1]], Style: st, Kind: SpanFileRef})
		pos = loc[1]
	}
	if pos < len(text) {
		spans = append(spans, Span{Text: text[pos:], Style: st, Kind: base})
	}
	return spans
}
