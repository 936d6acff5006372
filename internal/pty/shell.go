package pty

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// EnvShellOverride names the environment variable that forces a shell.
const EnvShellOverride = "TERMCORE_SHELL"

// ShellInfo describes an installed command interpreter.
type ShellInfo struct {
	Name        string   `json:"name"`
	Path        string   `json:"path"`
	Args        []string `json:"args,omitempty"`
	Description string   `json:"description"`
	Default     bool     `json:"is_default"`
}

type shellCandidate struct {
	name        string
	command     string
	args        []string
	description string
}

// Ranked by preference.
var unixShells = []shellCandidate{
	{"bash", "bash", []string{"--login", "-i"}, "Bourne Again Shell"},
	{"zsh", "zsh", []string{"-l"}, "Z Shell"},
	{"fish", "fish", []string{"-l"}, "Friendly Interactive Shell"},
	{"sh", "sh", []string{"-l"}, "POSIX Shell"},
}

var windowsShells = []shellCandidate{
	{"pwsh", "pwsh.exe", []string{"-NoLogo"}, "PowerShell"},
	{"powershell", "powershell.exe", []string{"-NoLogo"}, "Windows PowerShell"},
	{"cmd", "cmd.exe", []string{"/k"}, "Command Prompt"},
	{"git-bash", `C:\Program Files\Git\bin\bash.exe`, []string{"--login", "-i"}, "Git Bash"},
}

// Resolver discovers shells on the host.
type Resolver struct {
	goos     string
	getenv   func(string) string
	lookPath func(string) (string, error)
}

// NewResolver returns a resolver for the running platform.
func NewResolver() *Resolver {
	return &Resolver{
		goos:     runtime.GOOS,
		getenv:   os.Getenv,
		lookPath: exec.LookPath,
	}
}

func (r *Resolver) candidates() []shellCandidate {
	if r.goos == "windows" {
		return windowsShells
	}
	return unixShells
}

// Available returns installed shells in preference order. The first entry
// is marked default. An explicit override, when it resolves, comes first.
func (r *Resolver) Available() []ShellInfo {
	var shells []ShellInfo
	seen := make(map[string]bool)

	if info, ok := r.override(); ok {
		shells = append(shells, info)
		seen[info.Path] = true
	}

	for _, c := range r.candidates() {
		path, err := r.lookPath(c.command)
		if err != nil || seen[path] {
			continue
		}
		seen[path] = true
		shells = append(shells, ShellInfo{
			Name:        c.name,
			Path:        path,
			Args:        c.args,
			Description: c.description,
		})
	}

	if len(shells) > 0 {
		shells[0].Default = true
	}
	return shells
}

// Default returns the preferred shell. It falls back to /bin/sh or
// cmd.exe when nothing on the path resolves.
func (r *Resolver) Default() ShellInfo {
	if shells := r.Available(); len(shells) > 0 {
		return shells[0]
	}
	if r.goos == "windows" {
		return ShellInfo{Name: "cmd", Path: "cmd.exe", Args: []string{"/k"}, Description: "Command Prompt", Default: true}
	}
	return ShellInfo{Name: "sh", Path: "/bin/sh", Args: []string{"-l"}, Description: "POSIX Shell", Default: true}
}

func (r *Resolver) override() (ShellInfo, bool) {
	value := strings.TrimSpace(r.getenv(EnvShellOverride))
	if value == "" && r.goos != "windows" {
		value = strings.TrimSpace(r.getenv("SHELL"))
	}
	if value == "" {
		return ShellInfo{}, false
	}

	path, err := r.lookPath(value)
	if err != nil {
		return ShellInfo{}, false
	}

	name := shellName(path)
	info := ShellInfo{Name: name, Path: path, Description: "Configured shell"}
	for _, c := range r.candidates() {
		if c.name == name {
			info.Args = c.args
			info.Description = c.description
			break
		}
	}
	return info, true
}

func shellName(path string) string {
	base := filepath.Base(strings.ReplaceAll(path, `\`, "/"))
	return strings.TrimSuffix(strings.ToLower(base), ".exe")
}

// AvailableShells lists installed shells on the running platform.
func AvailableShells() []ShellInfo {
	return NewResolver().Available()
}

// DefaultShell returns the preferred shell on the running platform.
func DefaultShell() ShellInfo {
	return NewResolver().Default()
}
