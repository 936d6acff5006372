package terminal

import (
	"errors"
	"io"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// Relay channel capacities.
const (
	outputBuffer = 1024
	inputBuffer  = 256
	readSize     = 4096
)

type readFunc func(p []byte) (int, error)

// readRelay copies a stream into out as text until the stream ends or
// done is closed. A multi-byte rune split across reads is carried to the
// next read. out is closed on return.
func readRelay(read readFunc, out chan<- string, done <-chan struct{}, log zerolog.Logger) {
	defer close(out)

	buf := make([]byte, readSize)
	var carry []byte

	send := func(s string) bool {
		select {
		case out <- s:
			return true
		case <-done:
			return false
		}
	}

	for {
		n, err := read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			cut := completePrefix(data)
			if cut > 0 && !send(string(data[:cut])) {
				return
			}
			carry = append(carry[:0:0], data[cut:]...)
		}
		if err != nil {
			if len(carry) > 0 {
				send(string(carry))
			}
			if !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Msg("read relay stopped")
			}
			return
		}
	}
}

// completePrefix returns the length of the longest prefix of data that
// does not end inside a UTF-8 sequence.
func completePrefix(data []byte) int {
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(data[i]) {
			continue
		}
		if utf8.FullRune(data[i:]) {
			return len(data)
		}
		return i
	}
	return len(data)
}

// writeRelay copies queued input to w until in is closed or a write fails.
func writeRelay(w io.Writer, in <-chan string, log zerolog.Logger) {
	for s := range in {
		if _, err := io.WriteString(w, s); err != nil {
			log.Debug().Err(err).Msg("write relay stopped")
			return
		}
	}
}
