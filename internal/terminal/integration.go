package terminal

import (
	"os"
	"path/filepath"
)

// bashPromptHook reports the last exit status as OSC 133;D before each
// prompt. It must run first so $? is still the command's status.
const bashPromptHook = `printf '\033]133;D;%s\007' "$?"`

// integrationEnv returns the variables that make the shell started as
// cmd report command completion, or nil when the shell has no hook. A
// PROMPT_COMMAND already set in env or inherited is kept after the hook.
func integrationEnv(cmd string, env map[string]string) map[string]string {
	if ParseShellType(filepath.Base(cmd)) != ShellBash {
		return nil
	}
	prev, ok := env["PROMPT_COMMAND"]
	if !ok {
		prev = os.Getenv("PROMPT_COMMAND")
	}
	hook := bashPromptHook
	if prev != "" {
		hook += "; " + prev
	}
	return map[string]string{"PROMPT_COMMAND": hook}
}
