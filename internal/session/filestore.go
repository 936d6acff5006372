package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Lock acquisition is retried until lockTimeout passes.
const (
	lockFileName = ".lock"
	lockTimeout  = 2 * time.Second
	lockRetry    = 10 * time.Millisecond
)

// FileStore keeps one JSON document per session in a directory. Writes
// are atomic and serialized across processes by a lock file.
type FileStore struct {
	dir         string
	lockTimeout time.Duration
}

// NewFileStore creates dir if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &FileStore{dir: dir, lockTimeout: lockTimeout}, nil
}

// Dir returns the store directory.
func (f *FileStore) Dir() string { return f.dir }

// FileName returns the document name for s: the id without dashes and
// the creation time in Unix seconds.
func FileName(s *Session) string {
	return fmt.Sprintf("session_%s_%d.json", strings.ReplaceAll(s.ID, "-", ""), s.CreatedAt.Unix())
}

// Save writes s to a temporary file and renames it into place.
func (f *FileStore) Save(s *Session) (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}

	unlock, err := f.lock()
	if err != nil {
		return "", err
	}
	defer unlock()

	path := filepath.Join(f.dir, FileName(s))
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(name, path)
	}
	if err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (f *FileStore) lock() (func(), error) {
	file, err := os.OpenFile(filepath.Join(f.dir, lockFileName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	deadline := time.Now().Add(f.lockTimeout)
	for {
		err = lockFile(file)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrStoreLocked) || time.Now().After(deadline) {
			_ = file.Close()
			return nil, err
		}
		time.Sleep(lockRetry)
	}

	return func() {
		_ = unlockFile(file)
		_ = file.Close()
	}, nil
}

// Load reads a session by path, file name or session id.
func (f *FileStore) Load(key string) (*Session, error) {
	path, err := f.resolve(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &s, nil
}

func (f *FileStore) resolve(key string) (string, error) {
	for _, p := range []string{key, filepath.Join(f.dir, key)} {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}

	pattern := filepath.Join(f.dir, "session_"+strings.ReplaceAll(key, "-", "")+"_*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, key)
	}
	slices.Sort(matches)
	return matches[len(matches)-1], nil
}

// List summarizes the documents in the store directory. Unreadable or
// malformed files are skipped.
func (f *FileStore) List() ([]Summary, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var out []Summary
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "session_") || filepath.Ext(name) != ".json" {
			continue
		}
		path := filepath.Join(f.dir, name)
		data, err := os.ReadFile(path)
		if err != nil || !gjson.ValidBytes(data) {
			continue
		}
		if sum, ok := summarize(path, data); ok {
			out = append(out, sum)
		}
	}

	sortSummaries(out)
	return out, nil
}

func summarize(key string, data []byte) (Summary, bool) {
	r := gjson.GetManyBytes(data, "id", "name", "created_at", "state", "command_history.#")
	if r[0].String() == "" {
		return Summary{}, false
	}
	sum := Summary{
		Key:      key,
		ID:       r[0].String(),
		Name:     r[1].String(),
		Commands: int(r[4].Int()),
	}
	sum.CreatedAt, _ = time.Parse(time.RFC3339Nano, r[2].String())
	sum.State, _ = ParseState(r[3].String())
	return sum, true
}

func sortSummaries(s []Summary) {
	slices.SortFunc(s, func(a, b Summary) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
