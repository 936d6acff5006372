//go:build windows

package pty

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
	"unicode/utf16"
	"unsafe"

	"github.com/google/uuid"
	"golang.org/x/sys/windows"
)

// conptySpawner starts processes attached to a Windows pseudo console.
type conptySpawner struct{}

func newPlatformSpawner() (Spawner, error) {
	if err := windows.NewLazySystemDLL("kernel32.dll").NewProc("CreatePseudoConsole").Find(); err != nil {
		return nil, fmt.Errorf("%w: ConPTY requires Windows 10 1809 or later", ErrUnsupportedPlatform)
	}
	return conptySpawner{}, nil
}

func (conptySpawner) Capabilities() Capabilities {
	return Capabilities{
		Resize:               true,
		Color:                true,
		Unicode:              true,
		JobControl:           false,
		EnvironmentInjection: true,
		MaxCols:              MaxCols,
		MaxRows:              MaxRows,
		Shells:               AvailableShells(),
	}
}

func (conptySpawner) Spawn(opts SpawnOptions) (Session, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	path, err := exec.LookPath(opts.Command)
	if err != nil {
		return nil, spawnError(opts.Command, err)
	}

	var inRead, inWrite, outRead, outWrite windows.Handle
	if err := windows.CreatePipe(&inRead, &inWrite, nil, 0); err != nil {
		return nil, spawnError(opts.Command, err)
	}
	if err := windows.CreatePipe(&outRead, &outWrite, nil, 0); err != nil {
		closeHandles(inRead, inWrite)
		return nil, spawnError(opts.Command, err)
	}

	var hpc windows.Handle
	size := windows.Coord{X: int16(opts.Cols), Y: int16(opts.Rows)}
	if err := windows.CreatePseudoConsole(size, inRead, outWrite, 0, &hpc); err != nil {
		closeHandles(inRead, inWrite, outRead, outWrite)
		return nil, spawnError(opts.Command, err)
	}
	// The pseudo console holds its own duplicates of these ends.
	closeHandles(inRead, outWrite)

	proc, err := startAttached(hpc, path, opts)
	if err != nil {
		windows.ClosePseudoConsole(hpc)
		closeHandles(inWrite, outRead)
		return nil, spawnError(opts.Command, err)
	}

	dir := opts.Dir
	if dir == "" {
		dir, _ = os.Getwd()
	}

	s := &conptySession{
		id:       uuid.NewString(),
		hpc:      hpc,
		in:       inWrite,
		out:      outRead,
		process:  proc.Process,
		pid:      int(proc.ProcessId),
		done:     make(chan struct{}),
		exitCode: -1,
		dir:      dir,
	}
	_ = windows.CloseHandle(proc.Thread)
	go s.wait()
	return s, nil
}

func startAttached(hpc windows.Handle, path string, opts SpawnOptions) (*windows.ProcessInformation, error) {
	attrs, err := windows.NewProcThreadAttributeList(1)
	if err != nil {
		return nil, err
	}
	defer attrs.Delete()

	// The attribute value is the HPCON itself, not a pointer to it.
	if err := attrs.Update(windows.PROC_THREAD_ATTRIBUTE_PSEUDOCONSOLE, unsafe.Pointer(hpc), unsafe.Sizeof(hpc)); err != nil {
		return nil, err
	}

	si := &windows.StartupInfoEx{ProcThreadAttributeList: attrs.List()}
	si.Cb = uint32(unsafe.Sizeof(*si))

	cmdLine, err := windows.UTF16PtrFromString(windows.ComposeCommandLine(append([]string{path}, opts.Args...)))
	if err != nil {
		return nil, err
	}

	var dir *uint16
	if opts.Dir != "" {
		if dir, err = windows.UTF16PtrFromString(opts.Dir); err != nil {
			return nil, err
		}
	}

	flags := uint32(windows.EXTENDED_STARTUPINFO_PRESENT)
	var env *uint16
	if opts.Env != nil {
		env = envBlock(opts.Env)
		flags |= windows.CREATE_UNICODE_ENVIRONMENT
	}

	pi := new(windows.ProcessInformation)
	if err := windows.CreateProcess(nil, cmdLine, nil, nil, false, flags, env, dir, &si.StartupInfo, pi); err != nil {
		return nil, err
	}
	return pi, nil
}

// envBlock encodes env as a double-NUL terminated UTF-16 block.
func envBlock(env []string) *uint16 {
	var b []uint16
	for _, kv := range env {
		if strings.IndexByte(kv, 0) >= 0 {
			continue
		}
		b = append(b, utf16.Encode([]rune(kv))...)
		b = append(b, 0)
	}
	if len(b) == 0 {
		b = append(b, 0)
	}
	b = append(b, 0)
	return &b[0]
}

func closeHandles(handles ...windows.Handle) {
	for _, h := range handles {
		if h != 0 {
			_ = windows.CloseHandle(h)
		}
	}
}

// conptySession is a child process attached to a pseudo console.
type conptySession struct {
	id      string
	hpc     windows.Handle
	in      windows.Handle
	out     windows.Handle
	process windows.Handle
	pid     int
	done    chan struct{}

	mu       sync.Mutex
	exitCode int
	dir      string
	closed   bool
}

func (s *conptySession) wait() {
	_, _ = windows.WaitForSingleObject(s.process, windows.INFINITE)
	var code uint32
	if err := windows.GetExitCodeProcess(s.process, &code); err == nil {
		s.mu.Lock()
		s.exitCode = int(code)
		s.mu.Unlock()
	}
	close(s.done)
}

func (s *conptySession) ID() string { return s.id }

func (s *conptySession) PID() int { return s.pid }

func (s *conptySession) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	var n uint32
	if err := windows.ReadFile(s.out, p, &n, nil); err != nil {
		if errors.Is(err, windows.ERROR_BROKEN_PIPE) || errors.Is(err, windows.ERROR_INVALID_HANDLE) {
			return int(n), io.EOF
		}
		return int(n), ioError("read", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	return int(n), nil
}

func (s *conptySession) Write(p []byte) (int, error) {
	var n uint32
	if err := windows.WriteFile(s.in, p, &n, nil); err != nil {
		return int(n), ioError("write", err)
	}
	return int(n), nil
}

func (s *conptySession) Resize(cols, rows uint16) error {
	if cols == 0 || rows == 0 || cols > MaxCols || rows > MaxRows {
		return invalidSize(cols, rows)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrProcessNotFound
	}
	if err := windows.ResizePseudoConsole(s.hpc, windows.Coord{X: int16(cols), Y: int16(rows)}); err != nil {
		return ioError("resize", err)
	}
	return nil
}

func (s *conptySession) IsAlive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *conptySession) ExitCode() (int, bool) {
	if s.IsAlive() {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode, true
}

func (s *conptySession) WaitTimeout(d time.Duration) (int, bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.done:
		return s.ExitCode()
	case <-timer.C:
		return 0, false
	}
}

func (s *conptySession) Terminate() error {
	if !s.IsAlive() {
		return nil
	}
	if err := windows.TerminateProcess(s.process, 1); err != nil {
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
			return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		}
		return fmt.Errorf("%w: %w", ErrProcessNotFound, err)
	}
	return nil
}

func (s *conptySession) Kill() error { return s.Terminate() }

func (s *conptySession) WorkingDirectory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

func (s *conptySession) SetWorkingDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return ioError("chdir", err)
	}
	if !info.IsDir() {
		return ioError("chdir", fmt.Errorf("%s is not a directory", dir))
	}
	s.mu.Lock()
	s.dir = dir
	s.mu.Unlock()
	return nil
}

// Close closes the pseudo console first so the child sees its console go
// away, then releases the pipes and process handle.
func (s *conptySession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	windows.ClosePseudoConsole(s.hpc)
	_ = s.Terminate()
	closeHandles(s.in, s.out)

	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
	}
	return windows.CloseHandle(s.process)
}
