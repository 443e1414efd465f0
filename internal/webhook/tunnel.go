package webhook

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Tunnel manages an optional tunnel subprocess (cloudflared, ngrok, ...)
// that exposes the webhook port. A "{port}" placeholder in the command
// line is replaced with the actual port.
type Tunnel struct {
	command string
	port    int

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

// NewTunnel prepares a tunnel runner; Start launches it.
func NewTunnel(command string, port int) *Tunnel {
	return &Tunnel{command: command, port: port}
}

// Start launches the tunnel subprocess detached from our stdio.
func (t *Tunnel) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd != nil {
		return fmt.Errorf("tunnel already running")
	}

	fields := strings.Fields(t.command)
	if len(fields) == 0 {
		return fmt.Errorf("tunnel command is empty")
	}
	for i, f := range fields {
		fields[i] = strings.ReplaceAll(f, "{port}", strconv.Itoa(t.port))
	}

	cmd := exec.Command(fields[0], fields[1:]...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start tunnel process: %w", err)
	}

	t.cmd = cmd
	t.done = make(chan struct{})
	done := t.done
	go func() {
		err := cmd.Wait()
		if err != nil {
			logrus.WithError(err).Warn("tunnel process exited")
		}
		close(done)
	}()

	logrus.WithFields(logrus.Fields{
		"pid":     cmd.Process.Pid,
		"command": fields[0],
	}).Info("tunnel started")
	return nil
}

// Running reports whether the tunnel process is alive.
func (t *Tunnel) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cmd == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Stop kills the tunnel process and waits briefly for it to be reaped.
// Safe to call when the tunnel never started.
func (t *Tunnel) Stop() {
	t.mu.Lock()
	cmd, done := t.cmd, t.done
	t.cmd = nil
	t.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := cmd.Process.Kill(); err != nil {
		logrus.WithError(err).Debug("tunnel kill failed")
	}
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		logrus.Warn("tunnel process did not exit after kill")
	}
}
