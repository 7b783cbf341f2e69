// CLAUDE:SUMMARY Starts and stops an Xvfb display for visible browsers on headless hosts.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const xvfbReadyTimeout = 5 * time.Second

// xvfbSocket returns the X socket path of a display such as ":99".
func xvfbSocket(display string) (string, error) {
	n := strings.TrimPrefix(display, ":")
	if i := strings.IndexByte(n, '.'); i >= 0 {
		n = n[:i]
	}
	if n == "" || strings.Trim(n, "0123456789") != "" {
		return "", fmt.Errorf("xvfb: bad display %q", display)
	}
	return filepath.Join("/tmp/.X11-unix", "X"+n), nil
}

// startXvfb runs a virtual display for a visible browser on a host without a
// screen, and returns once its socket accepts clients.
func startXvfb(display string, logger *slog.Logger) (*exec.Cmd, error) {
	sock, err := xvfbSocket(display)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command("Xvfb", display, "-screen", "0", "1920x1080x24", "-ac", "-nolisten", "tcp")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("xvfb: start: %w", err)
	}

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	deadline := time.After(xvfbReadyTimeout)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if _, err := os.Stat(sock); err == nil {
			logger.Info("session: xvfb ready", "display", display, "pid", cmd.Process.Pid)
			return cmd, nil
		}
		select {
		case err := <-exited:
			if err == nil {
				err = errors.New("exit status 0")
			}
			return nil, fmt.Errorf("xvfb: exited before %s was ready: %w", display, err)
		case <-deadline:
			cmd.Process.Kill()
			<-exited
			return nil, fmt.Errorf("xvfb: %s not ready after %s", sock, xvfbReadyTimeout)
		case <-tick.C:
		}
	}
}

// stopXvfb kills the display server. Wait is already pending in startXvfb's
// goroutine, so only the signal is sent here.
func stopXvfb(cmd *exec.Cmd, logger *slog.Logger) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logger.Warn("session: xvfb kill", "error", err)
		return
	}
	logger.Info("session: xvfb stopped")
}
