package session

import (
	"maps"
	"slices"
)

// DefaultTemplate is the name of the built-in template.
const DefaultTemplate = "default"

// Template pre-configures new sessions.
type Template struct {
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	WorkingDirectory string            `json:"working_directory,omitempty"`
	Shell            string            `json:"shell_type,omitempty"`
	Environment      map[string]string `json:"environment_variables,omitempty"`
	StartupCommands  []string          `json:"startup_commands,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	AutoBookmark     []Rule            `json:"auto_bookmark_events,omitempty"`
}

func (t Template) clone() Template {
	t.Environment = maps.Clone(t.Environment)
	t.StartupCommands = slices.Clone(t.StartupCommands)
	t.Tags = slices.Clone(t.Tags)
	t.AutoBookmark = slices.Clone(t.AutoBookmark)
	return t
}

func defaultTemplate() Template {
	return Template{
		Name:         DefaultTemplate,
		Description:  "Default terminal session",
		AutoBookmark: []Rule{CommandFailure()},
	}
}
