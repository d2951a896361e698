package reconcile

import (
	"context"
	"log/slog"
	"os"
)

// mockSvnClient implements svn.Client for testing.
type mockSvnClient struct {
	checkoutCalls int
	updateCalls   int
	exportCalls   int
	listCalls     int

	checkoutErr error
	updateErr   error
	exportErr   error
	listErr     error

	listEntries []string
	workingCopy bool
	lastForce   bool
	lastListURL string

	// exportSetup simulates svn populating the target directory.
	exportSetup func(targetPath string)
}

func (m *mockSvnClient) Checkout(_ context.Context, _, _ string) error {
	m.checkoutCalls++
	return m.checkoutErr
}

func (m *mockSvnClient) Export(_ context.Context, _, targetPath string, force bool) error {
	m.exportCalls++
	m.lastForce = force
	if m.exportErr != nil {
		return m.exportErr
	}
	if m.exportSetup != nil {
		m.exportSetup(targetPath)
	}
	return nil
}

func (m *mockSvnClient) Update(_ context.Context, _ string) error {
	m.updateCalls++
	return m.updateErr
}

func (m *mockSvnClient) List(_ context.Context, repositoryURL string) ([]string, error) {
	m.listCalls++
	m.lastListURL = repositoryURL
	return m.listEntries, m.listErr
}

func (m *mockSvnClient) IsWorkingCopy(_ string) bool {
	return m.workingCopy
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
