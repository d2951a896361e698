// Package activation detects systemd socket activation so the webhook
// server can accept a listener passed in by a .socket unit instead of
// opening its own.
package activation

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

// Systemd hands activated sockets to the process starting at fd 3
// (0-2 are the standard streams).
const listenFdsStart = 3

// Listener returns the socket systemd passed to this process, or nil
// when the process was not socket-activated. More than one activated
// socket is an error: the webhook server serves a single endpoint.
func Listener() (net.Listener, error) {
	pidStr := os.Getenv("LISTEN_PID")
	if pidStr == "" {
		return nil, nil
	}

	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid LISTEN_PID %q: %w", pidStr, err)
	}
	if pid != os.Getpid() {
		// The activation targets a different process.
		return nil, nil
	}

	fdsStr := os.Getenv("LISTEN_FDS")
	if fdsStr == "" {
		return nil, nil
	}

	numFDs, err := strconv.Atoi(fdsStr)
	if err != nil {
		return nil, fmt.Errorf("invalid LISTEN_FDS %q: %w", fdsStr, err)
	}
	if numFDs < 1 {
		return nil, nil
	}
	if numFDs > 1 {
		return nil, fmt.Errorf("expected a single activated socket, got %d", numFDs)
	}

	// Unset so child processes do not inherit the activation state.
	defer func() {
		_ = os.Unsetenv("LISTEN_PID")
		_ = os.Unsetenv("LISTEN_FDS")
		_ = os.Unsetenv("LISTEN_FDNAMES")
	}()

	file := os.NewFile(uintptr(listenFdsStart), "systemd-socket")
	if file == nil {
		return nil, fmt.Errorf("failed to open activated fd %d", listenFdsStart)
	}

	listener, err := net.FileListener(file)
	// The listener duplicates the descriptor; the file is closed either way.
	_ = file.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to create listener from fd %d: %w", listenFdsStart, err)
	}

	return listener, nil
}
