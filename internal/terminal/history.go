package terminal

// DefaultHistorySize bounds InputHistory when no size is configured.
const DefaultHistorySize = 1000

// InputHistory is a bounded list of submitted commands with shell-style
// up/down navigation.
//
// While navigating, index always addresses a stored entry. The text being
// edited when navigation began is kept and restored by Next past the
// newest entry or by Cancel.
type InputHistory struct {
	entries    []string
	max        int
	index      int
	navigating bool
	temp       string
}

// NewInputHistory creates a history holding at most max commands.
func NewInputHistory(max int) *InputHistory {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &InputHistory{max: max}
}

// Add appends cmd. Empty commands and repeats of the newest entry are
// skipped. Navigation is reset.
func (h *InputHistory) Add(cmd string) bool {
	h.navigating = false
	h.temp = ""

	if cmd == "" {
		return false
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == cmd {
		return false
	}

	h.entries = append(h.entries, cmd)
	if over := len(h.entries) - h.max; over > 0 {
		clear(h.entries[:over])
		h.entries = h.entries[over:]
	}
	return true
}

// Previous moves to the next-older command. current is the text being
// edited; it is saved on the first step.
func (h *InputHistory) Previous(current string) (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	if !h.navigating {
		h.navigating = true
		h.temp = current
		h.index = len(h.entries) - 1
	} else if h.index > 0 {
		h.index--
	}
	return h.entries[h.index], true
}

// Next moves to the next-newer command. Stepping past the newest entry
// restores the saved text and ends navigation.
func (h *InputHistory) Next() (string, bool) {
	if !h.navigating {
		return "", false
	}
	if h.index < len(h.entries)-1 {
		h.index++
		return h.entries[h.index], true
	}
	return h.Cancel(), true
}

// Cancel ends navigation and returns the saved text.
func (h *InputHistory) Cancel() string {
	temp := h.temp
	h.navigating = false
	h.temp = ""
	return temp
}

// Navigating reports whether Previous has been called since the last
// Add, Next past the end, or Cancel.
func (h *InputHistory) Navigating() bool { return h.navigating }

// Entries returns a copy of the history, oldest first.
func (h *InputHistory) Entries() []string {
	return append([]string(nil), h.entries...)
}

// Len returns the number of stored commands.
func (h *InputHistory) Len() int { return len(h.entries) }

// Clear removes every command.
func (h *InputHistory) Clear() {
	h.entries = nil
	h.navigating = false
	h.temp = ""
}
