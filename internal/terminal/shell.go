package terminal

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/dshills/termcore/internal/pty"
)

// ShellType selects the shell a terminal starts.
type ShellType uint8

const (
	ShellCustom ShellType = iota
	ShellBash
	ShellZsh
	ShellFish
	ShellPowerShell
	ShellCmd
)

var shellNames = map[ShellType]string{
	ShellCustom:     "custom",
	ShellBash:       "bash",
	ShellZsh:        "zsh",
	ShellFish:       "fish",
	ShellPowerShell: "powershell",
	ShellCmd:        "cmd",
}

func (s ShellType) String() string {
	if n, ok := shellNames[s]; ok {
		return n
	}
	return "unknown"
}

// ParseShellType maps a shell name to its type. Unknown names, and the
// empty string, are ShellCustom.
func ParseShellType(name string) ShellType {
	name = strings.TrimSuffix(strings.ToLower(name), ".exe")
	if name == "pwsh" {
		return ShellPowerShell
	}
	for t, n := range shellNames {
		if n == name {
			return t
		}
	}
	return ShellCustom
}

// shellCommand resolves the command line for typ. A non-empty
// defaultShell overrides the type and is split on whitespace.
func shellCommand(typ ShellType, defaultShell, goos string) (string, []string, error) {
	if strings.TrimSpace(defaultShell) != "" {
		fields := strings.Fields(defaultShell)
		return fields[0], fields[1:], nil
	}
	if defaultShell != "" {
		return "", nil, fmt.Errorf("%w: %q", ErrInvalidShellCommand, defaultShell)
	}

	switch typ {
	case ShellBash:
		return "bash", []string{"-i"}, nil
	case ShellZsh:
		return "zsh", []string{"-i"}, nil
	case ShellFish:
		return "fish", []string{"-i"}, nil
	case ShellPowerShell:
		if goos == "windows" {
			return "powershell.exe", []string{"-NoExit", "-Command", "-"}, nil
		}
		return "pwsh", []string{"-i"}, nil
	case ShellCmd:
		return "cmd.exe", []string{"/Q"}, nil
	default:
		sh := pty.DefaultShell()
		if sh.Path == "" {
			return "", nil, ErrInvalidShellCommand
		}
		return sh.Path, sh.Args, nil
	}
}

func hostShellCommand(typ ShellType, defaultShell string) (string, []string, error) {
	return shellCommand(typ, defaultShell, runtime.GOOS)
}
