package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sessionRow is the sessions table. Document holds the full session as
// JSON; the other columns serve List.
type sessionRow struct {
	ID         string    `gorm:"primaryKey"`
	Name       string    `gorm:"not null;default:''"`
	TerminalID string    `gorm:"index"`
	CreatedAt  time.Time `gorm:"index"`
	UpdatedAt  time.Time
	State      string `gorm:"not null"`
	Commands   int    `gorm:"not null;default:0"`
	Document   string `gorm:"type:text;not null"`
}

func (sessionRow) TableName() string { return "sessions" }

// SQLStore keeps sessions in a SQLite database.
type SQLStore struct {
	db *gorm.DB
}

// OpenSQLStore opens or creates the database at path. ":memory:" opens a
// private in-memory database.
func OpenSQLStore(path string) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise see its own database
		sqlDB.SetMaxOpenConns(1)
	} else if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := db.AutoMigrate(&sessionRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Save inserts or replaces the row for s. The key is the session id.
func (st *SQLStore) Save(s *Session) (string, error) {
	doc, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	row := sessionRow{
		ID:         s.ID,
		Name:       s.Name,
		TerminalID: s.TerminalID,
		CreatedAt:  s.CreatedAt,
		State:      s.State.String(),
		Commands:   len(s.Commands),
		Document:   string(doc),
	}
	if err := st.db.Save(&row).Error; err != nil {
		return "", fmt.Errorf("save session %s: %w", s.ID, err)
	}
	return s.ID, nil
}

// Load reads a session by id.
func (st *SQLStore) Load(id string) (*Session, error) {
	var row sessionRow
	err := st.db.First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	var s Session
	if err := json.Unmarshal([]byte(row.Document), &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

// List summarizes every stored session, oldest first.
func (st *SQLStore) List() ([]Summary, error) {
	var rows []sessionRow
	err := st.db.Select("id", "name", "created_at", "state", "commands").
		Order("created_at, id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	out := make([]Summary, 0, len(rows))
	for _, r := range rows {
		state, _ := ParseState(r.State)
		out = append(out, Summary{
			Key:       r.ID,
			ID:        r.ID,
			Name:      r.Name,
			CreatedAt: r.CreatedAt,
			State:     state,
			Commands:  r.Commands,
		})
	}
	return out, nil
}

// Delete removes a session.
func (st *SQLStore) Delete(id string) error {
	res := st.db.Delete(&sessionRow{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete session %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// Close closes the database.
func (st *SQLStore) Close() error {
	sqlDB, err := st.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
