package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/svnsyncd/svnsyncd/internal/svn"
)

// CheckoutControl keeps an updatable working copy in sync with a
// repository location. An existing working copy is updated in place;
// whether it was actually checked out from repositoryURL is not
// verified, so a copy belonging to a different repository is updated
// as-is.
type CheckoutControl struct {
	name          string
	repositoryURL string
	targetPath    string
	svn           svn.Client
	logger        *slog.Logger
}

// NewCheckoutControl creates a checkout control for one repository
// location and target path pair.
func NewCheckoutControl(name, repositoryURL, targetPath string, client svn.Client, logger *slog.Logger) *CheckoutControl {
	return &CheckoutControl{
		name:          name,
		repositoryURL: repositoryURL,
		targetPath:    targetPath,
		svn:           client,
		logger:        logger,
	}
}

func (c *CheckoutControl) Name() string { return c.name }

// Reconcile checks out the repository when the target is missing and
// updates it when it already is a working copy. A target that exists
// but is no working copy fails with *NotWorkingCopyError.
func (c *CheckoutControl) Reconcile(ctx context.Context) error {
	if _, err := os.Stat(c.targetPath); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat target %s: %w", c.targetPath, err)
		}

		c.logger.Info("checking out new working copy",
			"name", c.name, "url", c.repositoryURL, "target", c.targetPath)
		if err := ensureParentDir(c.targetPath); err != nil {
			return fmt.Errorf("failed to create parent directory for %s: %w", c.targetPath, err)
		}
		return c.svn.Checkout(ctx, c.repositoryURL, c.targetPath)
	}

	if !c.svn.IsWorkingCopy(c.targetPath) {
		return &NotWorkingCopyError{Path: c.targetPath}
	}

	c.logger.Info("updating working copy", "name", c.name, "target", c.targetPath)
	return c.svn.Update(ctx, c.targetPath)
}
