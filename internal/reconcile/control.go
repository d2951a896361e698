// Package reconcile decides, per configured rule, how to bring a local
// directory in line with its subversion source, and runs those
// decisions in ordered batches with per-control failure isolation.
package reconcile

import (
	"context"
	"os"
	"path/filepath"
)

// Control reconciles one repository location against one target path.
// The manager relies on nothing about a control beyond this contract.
type Control interface {
	Name() string
	Reconcile(ctx context.Context) error
}

// ensureParentDir creates the missing parent directories of target.
func ensureParentDir(target string) error {
	parent := filepath.Dir(target)
	if parent == target {
		return nil
	}
	return os.MkdirAll(parent, 0755)
}
