package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookmark(id, name, desc string, at time.Time, tags ...string) Bookmark {
	return Bookmark{ID: id, Name: name, Description: desc, Timestamp: at, Tags: tags}
}

func ids(bs []Bookmark) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.ID
	}
	return out
}

func TestBookmarkManagerIndexes(t *testing.T) {
	m := NewBookmarkManager()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	m.Add(bookmark("b1", "Deploy staging", "after the migration", at, "deploy", "important"), "s1")
	m.Add(bookmark("b2", "Test Bookmark", "A test bookmark", at.Add(time.Minute), "test"), "s1")
	m.Add(bookmark("b3", "deploy prod", "", at.Add(2*time.Minute), "deploy"), "s2")

	assert.Equal(t, 3, m.Len())
	assert.Equal(t, []string{"b1", "b3"}, ids(m.ByTag("deploy")))
	assert.Equal(t, []string{"b1", "b2"}, ids(m.BySession("s1")))
	assert.Equal(t, []string{"b3"}, ids(m.BySession("s2")))
	assert.Empty(t, m.ByTag("missing"))

	assert.Equal(t, []string{"b1", "b3"}, ids(m.Search("DEPLOY")))
	assert.Equal(t, []string{"b1"}, ids(m.Search("deploy migration")))
	assert.Equal(t, []string{"b2"}, ids(m.Search("test")))
	assert.Empty(t, m.Search("deploy test"))
	assert.Empty(t, m.Search("   "))

	got, ok := m.Get("b3")
	require.True(t, ok)
	assert.Equal(t, "s2", got.SessionID)

	assert.Equal(t, []string{"b1", "b2", "b3"}, ids(m.All()))
}

func TestBookmarkManagerRemove(t *testing.T) {
	m := NewBookmarkManager()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m.Add(bookmark("b1", "build failed", "", at, "auto", "failure"), "s1")
	m.Add(bookmark("b2", "build ok", "", at, "auto"), "s1")

	coll := m.CreateCollection("triage", "")
	require.NoError(t, m.AddToCollection(coll, "b1"))

	require.NoError(t, m.Remove("b1"))
	assert.ErrorIs(t, m.Remove("b1"), ErrBookmarkNotFound)

	assert.Empty(t, m.ByTag("failure"))
	assert.Equal(t, []string{"b2"}, ids(m.ByTag("auto")))
	assert.Equal(t, []string{"b2"}, ids(m.Search("build")))
	assert.Equal(t, []string{"b2"}, ids(m.BySession("s1")))

	c, bs, err := m.Collection(coll)
	require.NoError(t, err)
	assert.Empty(t, c.BookmarkIDs)
	assert.Empty(t, bs)
}

func TestBookmarkManagerReplace(t *testing.T) {
	m := NewBookmarkManager()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m.Add(bookmark("b1", "old name", "", at, "old"), "s1")
	m.Add(bookmark("b1", "new name", "", at, "new"), "s1")

	assert.Equal(t, 1, m.Len())
	assert.Empty(t, m.ByTag("old"))
	assert.Empty(t, m.Search("old"))
	assert.Equal(t, []string{"b1"}, ids(m.Search("new")))
	assert.Equal(t, []string{"b1"}, ids(m.BySession("s1")))
}

func TestBookmarkCollections(t *testing.T) {
	m := NewBookmarkManager()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return at }
	m.Add(bookmark("b1", "one", "", at), "s1")
	m.Add(bookmark("b2", "two", "", at), "s2")

	id := m.CreateCollection("release", "things to check")
	require.NoError(t, m.AddToCollection(id, "b2"))
	require.NoError(t, m.AddToCollection(id, "b1"))
	require.NoError(t, m.AddToCollection(id, "b2"))

	c, bs, err := m.Collection(id)
	require.NoError(t, err)
	assert.Equal(t, "release", c.Name)
	assert.Equal(t, "things to check", c.Description)
	assert.Equal(t, at, c.CreatedAt)
	assert.Equal(t, []string{"b2", "b1"}, c.BookmarkIDs)
	assert.Equal(t, []string{"b2", "b1"}, ids(bs))

	assert.ErrorIs(t, m.AddToCollection("nope", "b1"), ErrCollectionNotFound)
	assert.ErrorIs(t, m.AddToCollection(id, "nope"), ErrBookmarkNotFound)
	_, _, err = m.Collection("nope")
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	assert.Len(t, m.Collections(), 1)
}
