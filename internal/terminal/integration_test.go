package terminal

import (
	"strings"
	"testing"
)

func TestIntegrationEnv(t *testing.T) {
	t.Setenv("PROMPT_COMMAND", "")

	if env := integrationEnv("/bin/sh", nil); env != nil {
		t.Errorf("expected no hook for sh, got %v", env)
	}
	if env := integrationEnv("zsh", nil); env != nil {
		t.Errorf("expected no hook for zsh, got %v", env)
	}

	env := integrationEnv("/usr/bin/bash", nil)
	if env["PROMPT_COMMAND"] != bashPromptHook {
		t.Errorf("expected bash hook, got %q", env["PROMPT_COMMAND"])
	}

	env = integrationEnv("bash", map[string]string{"PROMPT_COMMAND": "history -a"})
	if env["PROMPT_COMMAND"] != bashPromptHook+"; history -a" {
		t.Errorf("expected hook before the configured command, got %q", env["PROMPT_COMMAND"])
	}

	t.Setenv("PROMPT_COMMAND", "update_title")
	env = integrationEnv("bash", nil)
	if env["PROMPT_COMMAND"] != bashPromptHook+"; update_title" {
		t.Errorf("expected hook before the inherited command, got %q", env["PROMPT_COMMAND"])
	}
}

func TestManagerInstallsBashHook(t *testing.T) {
	m, sp, _, _ := newTestManager(t, func(c *Config) {
		c.DefaultShell = "/bin/bash -i"
		c.ShellIntegration = true
	})
	if _, err := m.Create(""); err != nil {
		t.Fatal(err)
	}

	var hook string
	for _, kv := range sp.opts[0].Env {
		if v, ok := strings.CutPrefix(kv, "PROMPT_COMMAND="); ok {
			hook = v
		}
	}
	if !strings.HasPrefix(hook, bashPromptHook) {
		t.Errorf("expected PROMPT_COMMAND hook in spawn env, got %q", hook)
	}
}

func TestManagerWithoutIntegrationKeepsEnv(t *testing.T) {
	m, sp, _, _ := newTestManager(t, func(c *Config) {
		c.DefaultShell = "bash"
		c.ShellIntegration = false
		c.Env = nil
	})
	if _, err := m.Create(""); err != nil {
		t.Fatal(err)
	}
	if sp.opts[0].Env != nil {
		t.Errorf("expected inherited environment, got %d entries", len(sp.opts[0].Env))
	}
}
