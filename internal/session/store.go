package session

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/termcore/internal/config"
)

// Summary describes a stored session without loading it.
type Summary struct {
	Key       string    `json:"key"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	State     State     `json:"state"`
	Commands  int       `json:"commands"`
}

// Store persists whole sessions.
type Store interface {
	// Save writes s and returns the key it can be loaded by.
	Save(s *Session) (string, error)

	// Load reads the session stored under key.
	Load(key string) (*Session, error)

	// List summarizes every stored session, oldest first.
	List() ([]Summary, error)
}

// Storage backends.
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

// sqliteFile is the database name used inside the save directory.
const sqliteFile = "sessions.db"

// OpenStore opens the backend in cfg.Storage under dir. The caller closes
// the returned store when it implements io.Closer.
func OpenStore(cfg config.SessionConfig, dir string) (Store, error) {
	switch strings.ToLower(cfg.Storage) {
	case "", StorageFile:
		return NewFileStore(dir)
	case StorageSQLite:
		return OpenSQLStore(filepath.Join(dir, sqliteFile))
	default:
		return nil, fmt.Errorf("session: unknown storage %q", cfg.Storage)
	}
}
