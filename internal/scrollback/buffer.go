// Package scrollback stores rendered terminal lines under line-count and
// memory limits, with a scrollable viewport.
package scrollback

import (
	"strings"
)

// Default limits.
const (
	DefaultMaxLines  = 10000
	DefaultMaxMemory = 50 * 1024 * 1024
	DefaultHeight    = 24
)

// Stats summarizes buffer activity.
type Stats struct {
	Lines        int    `json:"lines"`
	TotalLines   uint64 `json:"total_lines"`
	DroppedLines uint64 `json:"dropped_lines"`
	Memory       int    `json:"estimated_memory"`
}

// Match is one search hit.
type Match struct {
	// Line is the index into the buffer at the time of the search.
	Line int
	// Column is the byte offset of the hit within the line text.
	Column int
	Length int
}

// Buffer is a bounded sequence of lines, oldest first.
//
// The line count never exceeds the line limit, and the estimated memory
// never exceeds twice the memory limit. The oldest lines are evicted
// first. Buffer is not safe for concurrent use.
type Buffer struct {
	lines     []Line
	maxLines  int
	maxMemory int
	memory    int

	total   uint64
	dropped uint64

	// offset counts lines between the viewport bottom and the newest line.
	offset int
	height int
}

// New creates a buffer. Non-positive limits use the defaults.
func New(maxLines, maxMemory int) *Buffer {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	if maxMemory <= 0 {
		maxMemory = DefaultMaxMemory
	}
	return &Buffer{
		maxLines:  maxLines,
		maxMemory: maxMemory,
		height:    DefaultHeight,
	}
}

// AddLine appends l and evicts from the front until both limits hold.
// A scrolled-back viewport stays on the same content.
func (b *Buffer) AddLine(l Line) {
	b.lines = append(b.lines, l)
	b.memory += l.Memory()
	b.total++

	if b.offset > 0 {
		b.offset++
	}
	b.evict()
}

// AddText appends an unstyled line.
func (b *Buffer) AddText(typ LineType, text string) {
	b.AddLine(TextLine(typ, text))
}

func (b *Buffer) evict() {
	n := 0
	for n < len(b.lines) && (len(b.lines)-n > b.maxLines || b.memory > 2*b.maxMemory) {
		b.memory -= b.lines[n].Memory()
		n++
	}
	if n == 0 {
		return
	}
	clear(b.lines[:n])
	b.lines = b.lines[n:]
	b.dropped += uint64(n)
	b.clampOffset()
}

// Len returns the number of stored lines.
func (b *Buffer) Len() int { return len(b.lines) }

// Line returns line i, oldest first.
func (b *Buffer) Line(i int) (Line, bool) {
	if i < 0 || i >= len(b.lines) {
		return Line{}, false
	}
	return b.lines[i], true
}

// Lines returns lines [start, end) without copying. The result must not
// be retained across AddLine calls.
func (b *Buffer) Lines(start, end int) []Line {
	start = max(start, 0)
	end = min(end, len(b.lines))
	if start >= end {
		return nil
	}
	return b.lines[start:end:end]
}

// Last returns up to n of the newest lines.
func (b *Buffer) Last(n int) []Line {
	return b.Lines(len(b.lines)-n, len(b.lines))
}

// SetViewportHeight sets how many lines Visible returns.
func (b *Buffer) SetViewportHeight(h int) {
	if h <= 0 {
		h = DefaultHeight
	}
	b.height = h
	b.clampOffset()
}

// ViewportHeight returns the viewport height.
func (b *Buffer) ViewportHeight() int { return b.height }

// Visible returns the lines in the viewport without copying.
func (b *Buffer) Visible() []Line {
	end := len(b.lines) - b.offset
	return b.Lines(end-b.height, end)
}

// ScrollUp moves the viewport n lines toward older output.
func (b *Buffer) ScrollUp(n int) {
	b.offset += max(n, 0)
	b.clampOffset()
}

// ScrollDown moves the viewport n lines toward newer output.
func (b *Buffer) ScrollDown(n int) {
	b.offset = max(b.offset-max(n, 0), 0)
}

// ScrollToBottom pins the viewport to the newest line.
func (b *Buffer) ScrollToBottom() { b.offset = 0 }

// AtBottom reports whether the viewport shows the newest line.
func (b *Buffer) AtBottom() bool { return b.offset == 0 }

// Offset returns the number of lines scrolled back.
func (b *Buffer) Offset() int { return b.offset }

func (b *Buffer) clampOffset() {
	limit := max(len(b.lines)-b.height, 0)
	b.offset = min(b.offset, limit)
}

// Search returns every occurrence of query, oldest first.
func (b *Buffer) Search(query string, caseSensitive bool) []Match {
	if query == "" {
		return nil
	}
	if !caseSensitive {
		query = strings.ToLower(query)
	}

	var matches []Match
	for i, l := range b.lines {
		text := l.Text()
		if !caseSensitive {
			text = strings.ToLower(text)
		}
		for pos := 0; ; {
			idx := strings.Index(text[pos:], query)
			if idx < 0 {
				break
			}
			matches = append(matches, Match{Line: i, Column: pos + idx, Length: len(query)})
			pos += idx + len(query)
		}
	}
	return matches
}

// Stats returns the running statistics.
func (b *Buffer) Stats() Stats {
	return Stats{
		Lines:        len(b.lines),
		TotalLines:   b.total,
		DroppedLines: b.dropped,
		Memory:       b.memory,
	}
}

// Limits returns the configured line and memory limits.
func (b *Buffer) Limits() (maxLines, maxMemory int) {
	return b.maxLines, b.maxMemory
}

// Clear removes every line. Totals are kept.
func (b *Buffer) Clear() {
	b.lines = nil
	b.memory = 0
	b.offset = 0
}

// Text returns the buffer content as newline-separated plain text.
func (b *Buffer) Text() string {
	var sb strings.Builder
	for i, l := range b.lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(l.Text())
	}
	return sb.String()
}
