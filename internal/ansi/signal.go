package ansi

// SignalKind identifies an out-of-band notification found in the stream.
type SignalKind uint8

const (
	// SignalBell is a BEL character outside any sequence.
	SignalBell SignalKind = iota
	// SignalTitle is an OSC 0 or OSC 2 window title.
	SignalTitle
	// SignalWorkingDir is an OSC 7 working directory report.
	SignalWorkingDir
	// SignalPromptStart is a shell-integration prompt mark (OSC 133;A).
	SignalPromptStart
	// SignalCommandStart marks the start of command output (OSC 133;C).
	SignalCommandStart
	// SignalCommandDone is a shell-integration completion mark (OSC 133;D).
	SignalCommandDone
)

func (k SignalKind) String() string {
	switch k {
	case SignalBell:
		return "bell"
	case SignalTitle:
		return "title"
	case SignalWorkingDir:
		return "cwd"
	case SignalPromptStart:
		return "prompt"
	case SignalCommandStart:
		return "command-start"
	case SignalCommandDone:
		return "command-done"
	default:
		return "unknown"
	}
}

// Signal is an out-of-band notification decoded from an OSC sequence.
type Signal struct {
	Kind  SignalKind
	Value string
	// ExitCode is set for SignalCommandDone when HasExitCode is true.
	ExitCode    int
	HasExitCode bool
}
