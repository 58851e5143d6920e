// Package procmgr runs a story twin binary in the background between
// storycheck invocations, tracking it in a small state file.
package procmgr

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"
)

// DefaultDir holds the state and log files, relative to the working directory.
const DefaultDir = ".storycheck"

const (
	stateFileName = "twin.json"
	logFileName   = "twin.log"
	stopTimeout   = 5 * time.Second
)

// ErrAlreadyRunning is returned by Start when a tracked twin is alive.
var ErrAlreadyRunning = errors.New("a twin is already running")

// Spec describes how to launch the twin.
type Spec struct {
	Binary   string
	Port     int
	SeedFile string
	Username string
	Password string
	Verbose  bool
}

// Entry tracks a running twin process.
type Entry struct {
	PID       int       `json:"pid"`
	Port      int       `json:"port"`
	Binary    string    `json:"binary"`
	LogPath   string    `json:"log_path"`
	StartedAt time.Time `json:"started_at"`
}

// Manager owns the state directory.
type Manager struct {
	Dir string
}

// New returns a Manager rooted at dir; empty means DefaultDir.
func New(dir string) *Manager {
	if dir == "" {
		dir = DefaultDir
	}
	return &Manager{Dir: dir}
}

func (m *Manager) statePath() string { return filepath.Join(m.Dir, stateFileName) }

// Load reads the tracked entry. It returns nil, nil when nothing is tracked.
func (m *Manager) Load() (*Entry, error) {
	data, err := os.ReadFile(m.statePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", m.statePath(), err)
	}
	return &e, nil
}

func (m *Manager) save(e *Entry) error {
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(m.statePath(), data, 0o644)
}

// writeFile is swapped in tests.
var writeFile = os.WriteFile

// Start launches the twin as a background process with output redirected
// to a log file in the state directory. If the entry cannot be recorded the
// process is killed and the returned entry describes it.
func (m *Manager) Start(spec Spec) (*Entry, error) {
	if cur, err := m.Load(); err != nil {
		return nil, err
	} else if cur != nil && IsRunning(cur.PID) {
		return cur, fmt.Errorf("%w (pid %d, port %d)", ErrAlreadyRunning, cur.PID, cur.Port)
	}

	binary, err := filepath.Abs(spec.Binary)
	if err != nil {
		return nil, fmt.Errorf("resolving binary path: %w", err)
	}
	info, err := os.Stat(binary)
	if err != nil {
		return nil, fmt.Errorf("binary not found: %s", binary)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("binary path is a directory: %s", binary)
	}

	args := []string{"--port", strconv.Itoa(spec.Port)}
	if spec.Username != "" {
		args = append(args, "--user", spec.Username)
	}
	if spec.Password != "" {
		args = append(args, "--password", spec.Password)
	}
	if spec.Verbose {
		args = append(args, "--verbose")
	}
	if spec.SeedFile != "" {
		seedPath, err := filepath.Abs(spec.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("resolving seed path: %w", err)
		}
		args = append(args, "--seed-file", seedPath)
	}

	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}
	logPath := filepath.Join(m.Dir, logFileName)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating log file: %w", err)
	}

	cmd := exec.Command(binary, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	setDetachedProcessAttrs(cmd)

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("starting twin: %w", err)
	}

	go func() {
		cmd.Wait()
		logFile.Close()
	}()

	e := &Entry{
		PID:       cmd.Process.Pid,
		Port:      spec.Port,
		Binary:    binary,
		LogPath:   logPath,
		StartedAt: time.Now().UTC(),
	}
	if err := m.save(e); err != nil {
		// An untracked twin could never be stopped by Stop.
		cmd.Process.Kill()
		return e, fmt.Errorf("saving state (twin pid %d killed): %w", e.PID, err)
	}
	return e, nil
}

// Stop sends SIGTERM to the tracked twin, waits for it to exit and forgets
// it. It falls back to SIGKILL after five seconds. Stopping when nothing is
// tracked is not an error.
func (m *Manager) Stop() (*Entry, error) {
	e, err := m.Load()
	if err != nil || e == nil {
		return nil, err
	}
	defer os.Remove(m.statePath())

	if !IsRunning(e.PID) {
		return e, nil
	}
	proc, err := os.FindProcess(e.PID)
	if err != nil {
		return e, nil
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return e, nil
	}

	deadline := time.Now().Add(stopTimeout)
	for time.Now().Before(deadline) {
		if !IsRunning(e.PID) {
			return e, nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	proc.Signal(syscall.SIGKILL)
	time.Sleep(100 * time.Millisecond)
	return e, nil
}

// IsRunning checks if a process with the given PID is still alive.
func IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds. Signal 0 probes existence.
	return proc.Signal(syscall.Signal(0)) == nil
}
