// Package ansi decodes terminal output into styled spans.
//
// Decoding is a fold over the input: Step takes a State and a chunk and
// returns the next State together with the spans and signals found in the
// chunk. SGR rendition persists in the State until an explicit reset, so
// it carries across chunk boundaries and newlines. Parser wraps a State for
// callers that prefer a mutable handle.
//
// A newline ends the current span and marks it EndOfLine; Lines groups a
// span stream into complete lines.
//
// OSC sequences for titles (0, 2), working directory (7), hyperlinks (8)
// and shell integration (133) are decoded. All other control sequences are
// consumed without effect.
package ansi
