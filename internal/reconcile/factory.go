package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/svnsyncd/svnsyncd/internal/config"
	"github.com/svnsyncd/svnsyncd/internal/svn"
)

// Factory builds controls from declarative rule records.
type Factory struct {
	svn    svn.Client
	logger *slog.Logger
}

// NewFactory creates a control factory backed by the given svn client.
func NewFactory(client svn.Client, logger *slog.Logger) *Factory {
	return &Factory{
		svn:    client,
		logger: logger,
	}
}

// Build constructs the control a rule describes. Required fields are
// checked in a fixed order regardless of rule type: type, name and
// target_path first, then the type-specific fields.
func (f *Factory) Build(ctx context.Context, rule config.Rule) (Control, error) {
	if rule.Type == "" {
		return nil, &config.Error{Reason: "'type' is required"}
	}
	if rule.Name == "" {
		return nil, &config.Error{Reason: "'name' is required"}
	}
	if rule.TargetPath == "" {
		return nil, &config.Error{Reason: "'target_path' is required"}
	}

	switch rule.Type {
	case config.TypeCheckout:
		if rule.RepositoryURL == "" {
			return nil, &config.Error{Reason: "checkout rules require 'repository_url'"}
		}
		return NewCheckoutControl(rule.Name, rule.RepositoryURL, rule.TargetPath, f.svn, f.logger), nil

	case config.TypeExport:
		url := rule.RepositoryURL
		if url == "" {
			if rule.ParentURL == "" {
				return nil, &config.Error{Reason: "export rules require 'repository_url' or 'parent_url'"}
			}
			resolved, err := f.resolveLatestChild(ctx, rule.ParentURL)
			if err != nil {
				return nil, err
			}
			url = resolved
		}
		return NewExportControl(rule.Name, url, rule.TargetPath, rule.ForceOverwrite, f.svn, f.logger), nil

	default:
		return nil, &config.Error{Reason: fmt.Sprintf("unsupported type %q", rule.Type)}
	}
}

// BuildAll builds every rule in order. A failure is wrapped with the
// failing rule's 1-based position.
func (f *Factory) BuildAll(ctx context.Context, rules []config.Rule) ([]Control, error) {
	controls := make([]Control, 0, len(rules))
	for i, rule := range rules {
		control, err := f.Build(ctx, rule)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		controls = append(controls, control)
	}
	return controls, nil
}

// resolveLatestChild picks the last entry of the parent listing as svn
// returned it. The selection is purely positional: nothing here sorts,
// so "latest" only holds when the external listing order provides it.
func (f *Factory) resolveLatestChild(ctx context.Context, parentURL string) (string, error) {
	entries, err := f.svn.List(ctx, parentURL)
	if err != nil {
		return "", fmt.Errorf("failed to list %s: %w", parentURL, err)
	}
	if len(entries) == 0 {
		return "", &config.Error{Reason: fmt.Sprintf("no entries found under parent url %s", parentURL)}
	}

	child := strings.TrimRight(entries[len(entries)-1], "/")
	resolved := parentURL + "/" + child
	if strings.HasSuffix(parentURL, "/") {
		resolved = parentURL + child
	}

	f.logger.Info("resolved latest child", "parent", parentURL, "child", child, "url", resolved)
	return resolved, nil
}
