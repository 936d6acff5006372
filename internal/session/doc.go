// Package session records what happens in terminals: the commands run,
// their outcome and duration, working directories and bookmarks.
//
// A Manager holds sessions and the ended-session history. Commands are
// recorded directly or by a Recorder attached to a terminal manager's
// event bus:
//
//	sessions := session.NewManager(session.DefaultConfig(), store, log)
//	session.NewRecorder(sessions, true, log).Attach(terminals.Bus())
//
// After each recorded command the auto-bookmark rules are evaluated; a
// matching rule adds a bookmark to the session and to the manager's
// BookmarkManager, which indexes bookmarks from every session.
//
// Sessions are persisted whole through a Store. FileStore writes one
// JSON document per session; SQLStore keeps the same document in a
// SQLite table.
package session
