package session

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Collection groups bookmarks across sessions.
type Collection struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	BookmarkIDs []string  `json:"bookmark_ids"`
	CreatedAt   time.Time `json:"created_at"`
}

// BookmarkManager indexes bookmarks from every session by tag, by
// content token and by owning session.
type BookmarkManager struct {
	mu sync.RWMutex

	bookmarks   map[string]Bookmark
	byTag       map[string][]string
	byToken     map[string][]string
	bySession   map[string][]string
	collections map[string]*Collection

	now func() time.Time
}

// NewBookmarkManager creates an empty manager.
func NewBookmarkManager() *BookmarkManager {
	return &BookmarkManager{
		bookmarks:   make(map[string]Bookmark),
		byTag:       make(map[string][]string),
		byToken:     make(map[string][]string),
		bySession:   make(map[string][]string),
		collections: make(map[string]*Collection),
		now:         time.Now,
	}
}

// tokens returns the lowercase words of a bookmark's name and description.
func tokens(b Bookmark) []string {
	words := strings.Fields(strings.ToLower(b.Name + " " + b.Description))
	slices.Sort(words)
	return slices.Compact(words)
}

// Add indexes b under sessionID. Re-adding an id replaces the bookmark.
func (m *BookmarkManager) Add(b Bookmark, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bookmarks[b.ID]; ok {
		m.unindex(b.ID)
	}
	b.SessionID = sessionID
	b.Tags = slices.Clone(b.Tags)
	m.bookmarks[b.ID] = b

	for _, tag := range b.Tags {
		m.byTag[tag] = append(m.byTag[tag], b.ID)
	}
	for _, tok := range tokens(b) {
		m.byToken[tok] = append(m.byToken[tok], b.ID)
	}
	if sessionID != "" {
		m.bySession[sessionID] = append(m.bySession[sessionID], b.ID)
	}
}

// Remove deletes a bookmark from every index and collection.
func (m *BookmarkManager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bookmarks[id]; !ok {
		return fmt.Errorf("%w: %s", ErrBookmarkNotFound, id)
	}
	m.unindex(id)
	for _, c := range m.collections {
		c.BookmarkIDs = slices.DeleteFunc(c.BookmarkIDs, func(v string) bool { return v == id })
	}
	return nil
}

func (m *BookmarkManager) unindex(id string) {
	b := m.bookmarks[id]
	delete(m.bookmarks, id)

	for _, tag := range b.Tags {
		removeID(m.byTag, tag, id)
	}
	for _, tok := range tokens(b) {
		removeID(m.byToken, tok, id)
	}
	removeID(m.bySession, b.SessionID, id)
}

func removeID(index map[string][]string, key, id string) {
	ids := slices.DeleteFunc(index[key], func(v string) bool { return v == id })
	if len(ids) == 0 {
		delete(index, key)
		return
	}
	index[key] = ids
}

// Get returns a bookmark by id.
func (m *BookmarkManager) Get(id string) (Bookmark, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookmarks[id]
	return b, ok
}

// Len returns the number of bookmarks.
func (m *BookmarkManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bookmarks)
}

// All returns every bookmark, oldest first.
func (m *BookmarkManager) All() []Bookmark {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Bookmark, 0, len(m.bookmarks))
	for _, b := range m.bookmarks {
		out = append(out, b)
	}
	sortBookmarks(out)
	return out
}

// ByTag returns bookmarks carrying tag.
func (m *BookmarkManager) ByTag(tag string) []Bookmark {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resolve(m.byTag[tag])
}

// BySession returns bookmarks owned by a session.
func (m *BookmarkManager) BySession(sessionID string) []Bookmark {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resolve(m.bySession[sessionID])
}

// Search returns bookmarks whose name or description contains every
// word of query, ignoring case.
func (m *BookmarkManager) Search(query string) []Bookmark {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return nil
	}
	slices.Sort(words)
	words = slices.Compact(words)

	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make(map[string]int)
	for _, w := range words {
		for _, id := range m.byToken[w] {
			hits[id]++
		}
	}

	var ids []string
	for id, n := range hits {
		if n == len(words) {
			ids = append(ids, id)
		}
	}
	return m.resolve(ids)
}

func (m *BookmarkManager) resolve(ids []string) []Bookmark {
	out := make([]Bookmark, 0, len(ids))
	for _, id := range ids {
		if b, ok := m.bookmarks[id]; ok {
			out = append(out, b)
		}
	}
	sortBookmarks(out)
	return out
}

func sortBookmarks(bs []Bookmark) {
	slices.SortFunc(bs, func(a, b Bookmark) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// CreateCollection creates an empty collection and returns its id.
func (m *BookmarkManager) CreateCollection(name, description string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := &Collection{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   m.now(),
	}
	m.collections[c.ID] = c
	return c.ID
}

// AddToCollection adds a bookmark to a collection. Adding twice is a no-op.
func (m *BookmarkManager) AddToCollection(collectionID, bookmarkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collectionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionID)
	}
	if _, ok := m.bookmarks[bookmarkID]; !ok {
		return fmt.Errorf("%w: %s", ErrBookmarkNotFound, bookmarkID)
	}
	if !slices.Contains(c.BookmarkIDs, bookmarkID) {
		c.BookmarkIDs = append(c.BookmarkIDs, bookmarkID)
	}
	return nil
}

// Collection returns a copy of a collection and its bookmarks.
func (m *BookmarkManager) Collection(id string) (Collection, []Bookmark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[id]
	if !ok {
		return Collection{}, nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, id)
	}
	out := *c
	out.BookmarkIDs = slices.Clone(c.BookmarkIDs)

	bs := make([]Bookmark, 0, len(c.BookmarkIDs))
	for _, bid := range c.BookmarkIDs {
		bs = append(bs, m.bookmarks[bid])
	}
	return out, bs, nil
}

// Collections returns every collection ordered by creation time.
func (m *BookmarkManager) Collections() []Collection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Collection, 0, len(m.collections))
	for _, c := range m.collections {
		cc := *c
		cc.BookmarkIDs = slices.Clone(c.BookmarkIDs)
		out = append(out, cc)
	}
	slices.SortFunc(out, func(a, b Collection) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}
