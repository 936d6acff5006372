package terminal

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestCompletePrefix(t *testing.T) {
	euro := []byte("€") // e2 82 ac
	tests := []struct {
		name string
		data []byte
		want int
	}{
		{"ascii", []byte("abc"), 3},
		{"empty", nil, 0},
		{"complete rune", append([]byte("a"), euro...), 4},
		{"one byte of three", append([]byte("a"), euro[0]), 1},
		{"two bytes of three", append([]byte("a"), euro[:2]...), 1},
		{"lone continuation", []byte{'a', 0x82}, 2},
	}

	for _, tt := range tests {
		if got := completePrefix(tt.data); got != tt.want {
			t.Errorf("%s: completePrefix = %d, want %d", tt.name, got, tt.want)
		}
	}
}

// chunkReader returns one chunk per read, then err.
func chunkReader(err error, chunks ...[]byte) readFunc {
	return func(p []byte) (int, error) {
		if len(chunks) == 0 {
			return 0, err
		}
		n := copy(p, chunks[0])
		chunks = chunks[1:]
		return n, nil
	}
}

func collect(ch <-chan string) []string {
	var out []string
	for s := range ch {
		out = append(out, s)
	}
	return out
}

func TestReadRelayCarriesSplitRunes(t *testing.T) {
	data := []byte("日本")
	read := chunkReader(io.EOF, data[:2], data[2:4], data[4:])

	out := make(chan string, 8)
	readRelay(read, out, make(chan struct{}), zerolog.Nop())

	got := collect(out)
	if strings.Join(got, "") != "日本" {
		t.Fatalf("expected 日本, got %q", got)
	}
	for _, s := range got {
		if !strings.HasPrefix("日本", s) && !strings.HasSuffix("日本", s) {
			t.Errorf("chunk %q splits a rune", s)
		}
	}
}

func TestReadRelayFlushesCarryOnError(t *testing.T) {
	read := chunkReader(errors.New("boom"), []byte{'o', 'k', 0xe2})

	out := make(chan string, 8)
	readRelay(read, out, make(chan struct{}), zerolog.Nop())

	got := collect(out)
	if len(got) != 2 || got[0] != "ok" || got[1] != "\xe2" {
		t.Errorf("expected [ok \\xe2], got %q", got)
	}
}

func TestReadRelayStopsOnDone(t *testing.T) {
	read := func(p []byte) (int, error) {
		return copy(p, "x"), nil
	}

	out := make(chan string)
	done := make(chan struct{})
	close(done)

	finished := make(chan struct{})
	go func() {
		readRelay(read, out, done, zerolog.Nop())
		close(finished)
	}()
	<-finished

	if _, ok := <-out; ok {
		t.Error("output channel should be closed")
	}
}

type failingWriter struct{ n int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.n++
	if w.n > 1 {
		return 0, io.ErrClosedPipe
	}
	return len(p), nil
}

func TestWriteRelay(t *testing.T) {
	var sb strings.Builder
	in := make(chan string, 3)
	in <- "a"
	in <- "b"
	close(in)
	writeRelay(&sb, in, zerolog.Nop())
	if sb.String() != "ab" {
		t.Errorf("expected 'ab', got %q", sb.String())
	}

	w := &failingWriter{}
	in = make(chan string, 3)
	in <- "a"
	in <- "b"
	in <- "c"
	close(in)
	writeRelay(w, in, zerolog.Nop())
	if w.n != 2 {
		t.Errorf("relay should stop after the first failed write, got %d writes", w.n)
	}
}
