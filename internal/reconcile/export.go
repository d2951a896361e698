package reconcile

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/svnsyncd/svnsyncd/internal/svn"
)

// ExportControl produces a one-shot, metadata-free copy of a
// repository location and locks every exported file read-only. The
// read-only transition is one-way; nothing in this package reverses it.
type ExportControl struct {
	name           string
	repositoryURL  string
	targetPath     string
	forceOverwrite bool
	svn            svn.Client
	logger         *slog.Logger
}

// NewExportControl creates an export control. With forceOverwrite an
// existing target is exported over in place; without it an existing
// target is left untouched.
func NewExportControl(name, repositoryURL, targetPath string, forceOverwrite bool, client svn.Client, logger *slog.Logger) *ExportControl {
	return &ExportControl{
		name:           name,
		repositoryURL:  repositoryURL,
		targetPath:     targetPath,
		forceOverwrite: forceOverwrite,
		svn:            client,
		logger:         logger,
	}
}

func (c *ExportControl) Name() string { return c.name }

// Reconcile exports the repository content and applies the read-only
// pass. An existing target is skipped entirely unless forceOverwrite
// is set; the skip is a success with zero side effects.
func (c *ExportControl) Reconcile(ctx context.Context) error {
	if _, err := os.Stat(c.targetPath); err == nil {
		if !c.forceOverwrite {
			c.logger.Info("target exists, skipping export", "name", c.name, "target", c.targetPath)
			return nil
		}
		c.logger.Info("overwriting existing export",
			"name", c.name, "url", c.repositoryURL, "target", c.targetPath)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat target %s: %w", c.targetPath, err)
	} else {
		c.logger.Info("exporting repository content",
			"name", c.name, "url", c.repositoryURL, "target", c.targetPath)
		if err := ensureParentDir(c.targetPath); err != nil {
			return fmt.Errorf("failed to create parent directory for %s: %w", c.targetPath, err)
		}
	}

	if err := c.svn.Export(ctx, c.repositoryURL, c.targetPath, c.forceOverwrite); err != nil {
		return err
	}

	for _, failure := range makeReadOnly(c.targetPath) {
		c.logger.Warn("failed to set file read-only",
			"name", c.name, "file", failure.Path, "error", failure.Err)
	}
	return nil
}

// FileFailure records a file the read-only pass could not change.
type FileFailure struct {
	Path string
	Err  error
}

// makeReadOnly strips write permission from every regular file under
// root. The pass is best-effort: a failing file is recorded and the
// walk continues, so the result is not all-or-nothing.
func makeReadOnly(root string) []FileFailure {
	var failures []FileFailure
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			failures = append(failures, FileFailure{Path: path, Err: err})
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := os.Chmod(path, 0444); err != nil {
			failures = append(failures, FileFailure{Path: path, Err: err})
		}
		return nil
	})
	return failures
}
