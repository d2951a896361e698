package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/svnsyncd/svnsyncd/internal/config"
)

func TestSetupLogger(t *testing.T) {
	// Save original globals.
	origLevel := logLevel
	origFormat := logFormat
	t.Cleanup(func() {
		logLevel = origLevel
		logFormat = origFormat
	})

	for _, tc := range []struct {
		name      string
		logLevel  string
		logFormat string
	}{
		{name: "debug/text", logLevel: "debug", logFormat: "text"},
		{name: "info/json", logLevel: "info", logFormat: "json"},
		{name: "warn/text", logLevel: "warn", logFormat: "text"},
		{name: "error/text", logLevel: "error", logFormat: "text"},
		{name: "unknown/text", logLevel: "unknown", logFormat: "text"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			logLevel = tc.logLevel
			logFormat = tc.logFormat

			logger := setupLogger()
			if logger == nil {
				t.Fatal("setupLogger returned nil")
			}
		})
	}
}

func TestLoadConfig_WithExplicitPath(t *testing.T) {
	origCfgFile := cfgFile
	t.Cleanup(func() { cfgFile = origCfgFile })

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`controls:
  - type: checkout
    name: trunk
    repository_url: "https://svn.example.com/proj/trunk"
    target_path: "/srv/checkout/trunk"
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
	cfgFile = path

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg, gotPath, err := loadConfig(logger)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if gotPath != path {
		t.Errorf("expected config path %s, got %s", path, gotPath)
	}
	if len(cfg.Controls) != 1 || cfg.Controls[0].Name != "trunk" {
		t.Errorf("unexpected controls: %+v", cfg.Controls)
	}
}

type stubStateClient struct {
	workingCopy bool
}

func (s *stubStateClient) Checkout(_ context.Context, _, _ string) error       { return nil }
func (s *stubStateClient) Export(_ context.Context, _, _ string, _ bool) error { return nil }
func (s *stubStateClient) Update(_ context.Context, _ string) error            { return nil }
func (s *stubStateClient) List(_ context.Context, _ string) ([]string, error)  { return nil, nil }
func (s *stubStateClient) IsWorkingCopy(_ string) bool                         { return s.workingCopy }

func TestDetectState(t *testing.T) {
	existing := t.TempDir()
	missing := filepath.Join(existing, "nope")

	tests := []struct {
		name        string
		rule        config.Rule
		workingCopy bool
		want        string
	}{
		{
			name: "missing checkout target",
			rule: config.Rule{Type: config.TypeCheckout, TargetPath: missing},
			want: "missing",
		},
		{
			name:        "checkout target is working copy",
			rule:        config.Rule{Type: config.TypeCheckout, TargetPath: existing},
			workingCopy: true,
			want:        "working copy",
		},
		{
			name: "checkout target is plain directory",
			rule: config.Rule{Type: config.TypeCheckout, TargetPath: existing},
			want: "not a working copy",
		},
		{
			name: "export target present",
			rule: config.Rule{Type: config.TypeExport, TargetPath: existing},
			want: "present",
		},
		{
			name: "export target missing",
			rule: config.Rule{Type: config.TypeExport, TargetPath: missing},
			want: "missing",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := &stubStateClient{workingCopy: tc.workingCopy}
			if got := detectState(client, tc.rule); got != tc.want {
				t.Errorf("detectState() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRuleRepository(t *testing.T) {
	direct := config.Rule{RepositoryURL: "https://svn.example.com/trunk"}
	if got := ruleRepository(direct); got != "https://svn.example.com/trunk" {
		t.Errorf("unexpected repository column: %s", got)
	}

	parent := config.Rule{ParentURL: "https://svn.example.com/tags"}
	if got := ruleRepository(parent); got != "latest under https://svn.example.com/tags" {
		t.Errorf("unexpected repository column: %s", got)
	}
}
