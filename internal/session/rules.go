package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RuleKind selects what an auto-bookmark rule matches.
type RuleKind uint8

const (
	// RuleCommandFailure matches commands with a non-zero exit code.
	RuleCommandFailure RuleKind = iota
	// RuleLongCommand matches commands that ran at least MinDuration.
	RuleLongCommand
	// RuleDirectoryChange matches cd commands.
	RuleDirectoryChange
	// RuleCommandPattern matches commands containing Pattern.
	RuleCommandPattern
	// RuleErrorOutput matches failed commands that produced output.
	RuleErrorOutput
)

var ruleNames = [...]string{
	RuleCommandFailure:  "command_failure",
	RuleLongCommand:     "long_command",
	RuleDirectoryChange: "directory_change",
	RuleCommandPattern:  "command_pattern",
	RuleErrorOutput:     "error_output",
}

func (k RuleKind) String() string {
	if int(k) < len(ruleNames) {
		return ruleNames[k]
	}
	return "unknown"
}

func (k RuleKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *RuleKind) UnmarshalText(b []byte) error {
	for i, n := range ruleNames {
		if n == string(b) {
			*k = RuleKind(i)
			return nil
		}
	}
	return fmt.Errorf("session: unknown rule kind %q", b)
}

// DefaultLongCommand is the LongCommand threshold used by the defaults.
const DefaultLongCommand = 30 * time.Second

// Rule creates a bookmark automatically when a recorded command matches.
type Rule struct {
	Kind        RuleKind      `json:"kind"`
	MinDuration time.Duration `json:"min_duration,omitempty"`
	Pattern     string        `json:"pattern,omitempty"`
}

// Rule constructors.
func CommandFailure() Rule { return Rule{Kind: RuleCommandFailure} }

func LongCommand(min time.Duration) Rule { return Rule{Kind: RuleLongCommand, MinDuration: min} }

func DirectoryChange() Rule { return Rule{Kind: RuleDirectoryChange} }

func CommandPattern(p string) Rule { return Rule{Kind: RuleCommandPattern, Pattern: p} }

func ErrorOutput() Rule { return Rule{Kind: RuleErrorOutput} }

// DefaultRules bookmarks failures and commands running 30s or longer.
func DefaultRules() []Rule {
	return []Rule{CommandFailure(), LongCommand(DefaultLongCommand)}
}

func failed(c Command) bool {
	return c.ExitCode != nil && *c.ExitCode != 0
}

// Match reports whether cmd triggers the rule.
func (r Rule) Match(cmd Command) bool {
	switch r.Kind {
	case RuleCommandFailure:
		return failed(cmd)
	case RuleLongCommand:
		return r.MinDuration > 0 && cmd.Duration >= r.MinDuration
	case RuleDirectoryChange:
		return cmd.Text == "cd" || strings.HasPrefix(cmd.Text, "cd ")
	case RuleCommandPattern:
		return r.Pattern != "" && strings.Contains(cmd.Text, r.Pattern)
	case RuleErrorOutput:
		return failed(cmd) && cmd.OutputSize > 0
	}
	return false
}

func (r Rule) label() (string, []string) {
	switch r.Kind {
	case RuleCommandFailure:
		return "Command failed", []string{"auto", "failure"}
	case RuleLongCommand:
		return "Long command", []string{"auto", "long-running"}
	case RuleDirectoryChange:
		return "Directory change", []string{"auto", "navigation"}
	case RuleCommandPattern:
		return "Pattern match", []string{"auto", "pattern"}
	default:
		return "Error output", []string{"auto", "error"}
	}
}

// EvaluateRules returns a bookmark for every rule cmd matches. Identical
// rules fire once.
func EvaluateRules(rules []Rule, cmd Command, index int) []Bookmark {
	var out []Bookmark
	seen := make(map[Rule]bool, len(rules))
	for _, r := range rules {
		if seen[r] || !r.Match(cmd) {
			continue
		}
		seen[r] = true

		label, tags := r.label()
		out = append(out, Bookmark{
			ID:               uuid.NewString(),
			Name:             fmt.Sprintf("Auto: %s: %s", label, cmd.Text),
			Timestamp:        cmd.ExecutedAt,
			CommandIndex:     index,
			WorkingDirectory: cmd.WorkingDirectory,
			Tags:             tags,
		})
	}
	return out
}
