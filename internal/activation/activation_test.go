package activation

import (
	"os"
	"strconv"
	"testing"
)

func TestListener_NoActivation(t *testing.T) {
	t.Setenv("LISTEN_PID", "")
	t.Setenv("LISTEN_FDS", "")

	ln, err := Listener()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ln != nil {
		t.Error("expected nil listener without activation env")
	}
}

func TestListener_ForeignPid(t *testing.T) {
	t.Setenv("LISTEN_PID", "1")
	t.Setenv("LISTEN_FDS", "1")

	ln, err := Listener()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ln != nil {
		t.Error("activation for another process must be ignored")
	}
}

func TestListener_InvalidPid(t *testing.T) {
	t.Setenv("LISTEN_PID", "not-a-pid")
	t.Setenv("LISTEN_FDS", "1")

	if _, err := Listener(); err == nil {
		t.Error("expected error for invalid LISTEN_PID")
	}
}

func TestListener_InvalidFds(t *testing.T) {
	t.Setenv("LISTEN_PID", strconv.Itoa(os.Getpid()))
	t.Setenv("LISTEN_FDS", "many")

	if _, err := Listener(); err == nil {
		t.Error("expected error for invalid LISTEN_FDS")
	}
}

func TestListener_TooManySockets(t *testing.T) {
	t.Setenv("LISTEN_PID", strconv.Itoa(os.Getpid()))
	t.Setenv("LISTEN_FDS", "2")

	if _, err := Listener(); err == nil {
		t.Error("expected error for more than one activated socket")
	}
}
