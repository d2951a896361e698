package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/svnsyncd/svnsyncd/internal/activation"
	"github.com/svnsyncd/svnsyncd/internal/config"
	"github.com/svnsyncd/svnsyncd/internal/reconcile"
)

// CommitEvent is the payload a subversion post-commit hook posts to
// the server.
type CommitEvent struct {
	Repository string `json:"repository"`
	Revision   int64  `json:"revision"`
}

// RebuildFunc builds a fresh manager from a newly loaded configuration.
// It runs when the config file changes on disk.
type RebuildFunc func(cfg *config.Config) (*reconcile.Manager, error)

// Server is the long-running webhook daemon: commit events trigger a
// debounced batch reconciliation, and config file changes swap in a
// rebuilt control set.
type Server struct {
	configPath string
	logger     *slog.Logger
	secret     []byte
	rebuild    RebuildFunc

	stateMu sync.Mutex // guards cfg and manager across reloads
	cfg     *config.Config
	manager *reconcile.Manager

	runMu      sync.Mutex // guards runActive and runPending
	runActive  bool
	runPending bool

	trigger *debouncer
	reload  *debouncer
}

// debouncer coalesces rapid triggers into a single delayed callback.
type debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	delay    time.Duration
	callback func()
}

// NewServer creates a webhook server for the given configuration. The
// HMAC secret is read once from the configured secret file; the config
// path is kept for hot reloads.
func NewServer(cfg *config.Config, configPath string, manager *reconcile.Manager, rebuild RebuildFunc, logger *slog.Logger) (*Server, error) {
	secret, err := os.ReadFile(cfg.Serve.SecretFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook secret: %w", err)
	}
	secret = []byte(strings.TrimSpace(string(secret)))

	return &Server{
		configPath: configPath,
		logger:     logger,
		secret:     secret,
		rebuild:    rebuild,
		cfg:        cfg,
		manager:    manager,
		trigger:    &debouncer{delay: 2 * time.Second},
		reload:     &debouncer{delay: time.Second},
	}, nil
}

// Start runs the server until ctx is cancelled. A systemd-activated
// socket is preferred over the configured listen address. An initial
// reconciliation runs before the endpoint accepts requests.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("performing initial reconciliation before starting webhook server")
	s.performReconcile(ctx)

	watcher, err := s.watchConfig()
	if err != nil {
		s.logger.Warn("config hot reload disabled", "error", err)
	} else {
		defer func() {
			_ = watcher.Close()
		}()
	}

	listener, err := activation.Listener()
	if err != nil {
		return fmt.Errorf("failed to check socket activation: %w", err)
	}
	if listener == nil {
		listener, err = net.Listen("tcp", s.currentConfig().Serve.ListenAddr)
		if err != nil {
			return fmt.Errorf("failed to listen: %w", err)
		}
	} else {
		s.logger.Info("using systemd-activated socket")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleCommit)

	server := &http.Server{
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("webhook server starting", "addr", listener.Addr().String())
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down webhook server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// handleCommit handles incoming post-commit hook requests
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.logger.Warn("rejecting non-POST request", "method", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if contentType := r.Header.Get("Content-Type"); contentType != "application/json" {
		s.logger.Warn("rejecting request with invalid content type", "content_type", contentType)
		http.Error(w, "Invalid content type", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MB limit
	if err != nil {
		s.logger.Error("failed to read request body", "error", err)
		http.Error(w, "Failed to read body", http.StatusInternalServerError)
		return
	}
	defer func() {
		_ = r.Body.Close()
	}()

	if !s.verifySignature(body, r.Header.Get("X-Svnsyncd-Signature")) {
		s.logger.Warn("rejecting request with invalid signature")
		http.Error(w, "Invalid signature", http.StatusForbidden)
		return
	}

	var event CommitEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.logger.Error("failed to parse webhook payload", "error", err)
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	if !s.isRepositoryAllowed(event.Repository) {
		s.logger.Info("ignoring disallowed repository", "repository", event.Repository)
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "Repository not configured for reconciliation\n")
		return
	}

	s.logger.Info("commit event accepted",
		"repository", event.Repository, "revision", event.Revision)

	s.trigger.run(func() {
		s.performReconcile(context.Background())
	})

	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "Reconciliation triggered\n")
}

// verifySignature verifies the HMAC-SHA256 signature header,
// formatted sha256=<hex> like GitHub's.
func (s *Server) verifySignature(body []byte, signature string) bool {
	if !strings.HasPrefix(signature, "sha256=") {
		return false
	}
	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	// Constant-time comparison
	return hmac.Equal([]byte(signature), []byte(expected))
}

// isRepositoryAllowed checks the repository against the allow-list.
func (s *Server) isRepositoryAllowed(repository string) bool {
	allowed := s.currentConfig().Serve.AllowedRepositories
	if len(allowed) == 0 {
		return true // no filter configured
	}
	for _, name := range allowed {
		if repository == name {
			return true
		}
	}
	return false
}

// performReconcile runs the batch with single-flight semantics. If a
// run is in progress at most one additional run is queued; further
// concurrent triggers are dropped.
func (s *Server) performReconcile(ctx context.Context) {
	s.runMu.Lock()
	if s.runActive {
		s.runPending = true
		s.runMu.Unlock()
		s.logger.Info("reconciliation already in progress, queuing pending re-run")
		return
	}
	s.runActive = true
	s.runMu.Unlock()

	for {
		result, err := s.currentManager().ReconcileAll(ctx)
		if err != nil {
			s.logger.Error("batch reconciliation failed",
				"attempted", result.Attempted,
				"succeeded", result.Succeeded,
				"failed", len(result.Failures),
				"error", err)
		} else {
			s.logger.Info("batch reconciliation succeeded", "attempted", result.Attempted)
		}

		// Atomically check whether another run was requested while this
		// one was active; service exactly one pending request.
		s.runMu.Lock()
		if !s.runPending {
			s.runActive = false
			s.runMu.Unlock()
			return
		}
		s.runPending = false
		s.runMu.Unlock()

		s.logger.Info("re-running reconciliation due to pending request")
	}
}

// watchConfig watches the config file's directory and hot-reloads the
// control set on changes. Watching the directory instead of the file
// survives editors and config management replacing the file.
func (s *Server) watchConfig() (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Clean(s.configPath)
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != configPath {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				s.logger.Info("config file changed", "path", configPath, "op", event.Op.String())
				s.reload.run(s.reloadConfig)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("config watcher error", "error", err)
			}
		}
	}()

	return watcher, nil
}

// reloadConfig rebuilds the control set from the config file. A bad
// new config is logged and the previous controls stay active. The
// serve section is not reapplied; listener changes need a restart.
func (s *Server) reloadConfig() {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		s.logger.Error("config reload failed, keeping previous controls", "error", err)
		return
	}

	manager, err := s.rebuild(cfg)
	if err != nil {
		s.logger.Error("control rebuild failed, keeping previous controls", "error", err)
		return
	}

	s.stateMu.Lock()
	s.cfg = cfg
	s.manager = manager
	s.stateMu.Unlock()

	s.logger.Info("configuration reloaded", "controls", manager.Count())
}

func (s *Server) currentConfig() *config.Config {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.cfg
}

func (s *Server) currentManager() *reconcile.Manager {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.manager
}

// run schedules the callback after the debounce delay, replacing any
// previously scheduled one.
func (d *debouncer) run(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.callback = callback

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		cb := d.callback
		d.mu.Unlock()

		if cb != nil {
			cb()
		}
	})
}
