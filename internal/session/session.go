package session

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// State is the lifecycle state of a session.
type State uint8

const (
	StateActive State = iota
	StatePaused
	StateEnded
	StateTerminated
	StateCrashed
)

var stateNames = [...]string{
	StateActive:     "active",
	StatePaused:     "paused",
	StateEnded:      "ended",
	StateTerminated: "terminated",
	StateCrashed:    "crashed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Finished reports whether the session has ended in any way.
func (s State) Finished() bool {
	return s == StateEnded || s == StateTerminated || s == StateCrashed
}

// ParseState parses a state name.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if strings.EqualFold(n, name) {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("session: unknown state %q", name)
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Command is one entry of a session's command log.
type Command struct {
	Text             string        `json:"command"`
	ExecutedAt       time.Time     `json:"executed_at"`
	Duration         time.Duration `json:"duration"`
	ExitCode         *int          `json:"exit_code"`
	WorkingDirectory string        `json:"working_directory"`
	Success          bool          `json:"success"`
	OutputSize       int           `json:"output_length"`
}

// Bookmark marks a point in a session's command log.
type Bookmark struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"session_id,omitempty"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	CommandIndex     int       `json:"command_index"`
	WorkingDirectory string    `json:"working_directory"`
	Tags             []string  `json:"tags,omitempty"`
	Important        bool      `json:"important"`
}

// HasTag reports whether the bookmark carries tag.
func (b Bookmark) HasTag(tag string) bool {
	return slices.Contains(b.Tags, tag)
}

// Statistics are accumulated as commands are recorded.
type Statistics struct {
	Executed    uint64            `json:"commands_executed"`
	Successful  uint64            `json:"commands_successful"`
	Failed      uint64            `json:"commands_failed"`
	OutputChars uint64            `json:"total_output_chars"`
	Directories []string          `json:"directories_visited"`
	Frequency   map[string]uint64 `json:"command_frequency"`
	AvgDuration time.Duration     `json:"avg_command_duration"`
}

// TopCommands returns up to n command names ordered by use, most used
// first. Ties are broken alphabetically.
func (s Statistics) TopCommands(n int) []string {
	names := slices.Collect(maps.Keys(s.Frequency))
	slices.SortFunc(names, func(a, b string) int {
		if c := cmp.Compare(s.Frequency[b], s.Frequency[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	if n >= 0 && len(names) > n {
		names = names[:n]
	}
	return names
}

// Session is the recorded history of one shell session.
type Session struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Description        string            `json:"description,omitempty"`
	TerminalID         string            `json:"terminal_id,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	LastActivity       time.Time         `json:"last_activity"`
	Duration           time.Duration     `json:"duration"`
	WorkingDirectory   string            `json:"working_directory"`
	Shell              string            `json:"shell_type"`
	InitialEnvironment map[string]string `json:"initial_environment,omitempty"`
	Commands           []Command         `json:"command_history"`
	State              State             `json:"state"`
	Tags               []string          `json:"tags,omitempty"`
	Bookmarks          []Bookmark        `json:"bookmarks"`
	Statistics         Statistics        `json:"statistics"`

	// Rules are evaluated in addition to the manager's rules.
	Rules []Rule `json:"auto_bookmark_rules,omitempty"`
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	c := *s
	c.InitialEnvironment = maps.Clone(s.InitialEnvironment)
	c.Commands = cloneCommands(s.Commands)
	c.Tags = slices.Clone(s.Tags)
	c.Bookmarks = slices.Clone(s.Bookmarks)
	for i := range c.Bookmarks {
		c.Bookmarks[i].Tags = slices.Clone(c.Bookmarks[i].Tags)
	}
	c.Statistics.Directories = slices.Clone(s.Statistics.Directories)
	c.Statistics.Frequency = maps.Clone(s.Statistics.Frequency)
	c.Rules = slices.Clone(s.Rules)
	return &c
}

func cloneCommands(cmds []Command) []Command {
	out := slices.Clone(cmds)
	for i, c := range out {
		if c.ExitCode != nil {
			code := *c.ExitCode
			out[i].ExitCode = &code
		}
	}
	return out
}

// record appends cmd and updates the statistics. It returns the index
// of the new command.
func (s *Session) record(cmd Command) int {
	s.Commands = append(s.Commands, cmd)
	s.LastActivity = cmd.ExecutedAt

	st := &s.Statistics
	st.Executed++
	if cmd.Success {
		st.Successful++
	} else {
		st.Failed++
	}
	st.OutputChars += uint64(cmd.OutputSize)

	if cmd.WorkingDirectory != "" && !slices.Contains(st.Directories, cmd.WorkingDirectory) {
		st.Directories = append(st.Directories, cmd.WorkingDirectory)
	}

	if name := commandName(cmd.Text); name != "" {
		if st.Frequency == nil {
			st.Frequency = make(map[string]uint64)
		}
		st.Frequency[name]++
	}

	n := time.Duration(st.Executed)
	st.AvgDuration = (st.AvgDuration*(n-1) + cmd.Duration) / n

	return len(s.Commands) - 1
}

// commandName returns the first word of a command line.
func commandName(cmd string) string {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// HistoryEntry is the compact record kept for an ended session.
type HistoryEntry struct {
	SessionID        string        `json:"session_id"`
	Name             string        `json:"session_name"`
	Start            time.Time     `json:"start_time"`
	End              time.Time     `json:"end_time"`
	FinalState       State         `json:"final_state"`
	Commands         int           `json:"commands_count"`
	Duration         time.Duration `json:"duration"`
	WorkingDirectory string        `json:"working_directory"`
	SavedAs          string        `json:"saved_file_path,omitempty"`
}
