// Package pty starts child processes on a pseudo-terminal.
//
// # Adapters
//
// NewSpawner selects the native adapter for the host:
//   - Unix: a PTY pair from creack/pty
//   - Windows: a ConPTY pseudo console
//
// NewPipeSpawner returns a portable adapter on plain pipes. It keeps stderr
// separate (see StderrReader) but cannot resize or offer job control.
// Consult Capabilities before relying on either.
//
// # Usage
//
//	sp, err := pty.NewSpawner()
//	if err != nil {
//	    return err
//	}
//	sh := pty.DefaultShell()
//	s, err := sp.Spawn(pty.SpawnOptions{Command: sh.Path, Args: sh.Args})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
// # Errors
//
// Errors match one of the package sentinels (ErrSpawnFailed, ErrIO,
// ErrInvalidSize, ...) with errors.Is.
package pty
