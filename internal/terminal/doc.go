// Package terminal runs shell processes behind pseudo-terminals and keeps
// their decoded output in scrollback buffers.
//
// A Manager owns every Terminal. The host calls Update from its frame
// loop; Update drains each terminal's output relays without blocking,
// decodes ANSI output into styled lines, tracks shell-integration marks
// and process exit, and publishes an Event per change on the manager's
// bus:
//
//	m := terminal.NewManager(terminal.DefaultConfig(), spawner)
//	sub := m.Subscribe(256)
//	t, _ := m.Create("")
//	_ = m.SendInput("ls -la\n")
//	for {
//		m.Update()
//		for _, ev := range sub.Drain() {
//			// render ev
//		}
//	}
//
// Input ending in a newline is recorded as a command. A command finishes
// when the shell reports OSC 133;D, when output has been idle for the
// configured timeout, when another command is submitted, or when the
// process exits.
package terminal
