package svn

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Client provides subversion operations for repository reconciliation
type Client interface {
	// Checkout creates a new working copy of repositoryURL at targetPath
	Checkout(ctx context.Context, repositoryURL, targetPath string) error
	// Export writes a one-shot, metadata-free copy of repositoryURL to targetPath
	Export(ctx context.Context, repositoryURL, targetPath string, force bool) error
	// Update brings an existing working copy up to date
	Update(ctx context.Context, workingCopyPath string) error
	// List returns the entries under repositoryURL in the exact order svn
	// printed them, blank lines excluded
	List(ctx context.Context, repositoryURL string) ([]string, error)
	// IsWorkingCopy reports whether path is a subversion working copy
	IsWorkingCopy(path string) bool
}

// CommandError reports a failed svn invocation together with the
// command's combined output. Callers propagate it unchanged.
type CommandError struct {
	Args   []string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("svn %s failed: %v: %s",
		strings.Join(e.Args, " "), e.Err, strings.TrimSpace(e.Output))
}

func (e *CommandError) Unwrap() error { return e.Err }

// ShellClient implements Client by shelling out to the svn command
type ShellClient struct {
	username     string
	passwordFile string
}

// NewShellClient creates a new svn client that uses the svn command.
// username and passwordFile may be empty for anonymous access.
func NewShellClient(username, passwordFile string) *ShellClient {
	return &ShellClient{
		username:     username,
		passwordFile: passwordFile,
	}
}

// Checkout creates a working copy at targetPath
func (c *ShellClient) Checkout(ctx context.Context, repositoryURL, targetPath string) error {
	_, err := c.run(ctx, "checkout", repositoryURL, targetPath)
	return err
}

// Export writes repository content to targetPath without working-copy metadata
func (c *ShellClient) Export(ctx context.Context, repositoryURL, targetPath string, force bool) error {
	args := []string{"export", repositoryURL, targetPath}
	if force {
		args = append(args, "--force")
	}
	_, err := c.run(ctx, args...)
	return err
}

// Update synchronizes an existing working copy with its repository
func (c *ShellClient) Update(ctx context.Context, workingCopyPath string) error {
	_, err := c.run(ctx, "update", workingCopyPath)
	return err
}

// List returns the directory entries of repositoryURL. Entry order is
// whatever svn produced; nothing here sorts.
func (c *ShellClient) List(ctx context.Context, repositoryURL string) ([]string, error) {
	output, err := c.run(ctx, "list", repositoryURL)
	if err != nil {
		return nil, err
	}

	entries := make([]string, 0)
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			entries = append(entries, line)
		}
	}
	return entries, nil
}

// IsWorkingCopy checks for the .svn metadata directory at path.
// It is a pure filesystem predicate and never shells out.
func (c *ShellClient) IsWorkingCopy(path string) bool {
	info, err := os.Stat(filepath.Join(path, ".svn"))
	return err == nil && info.IsDir()
}

// run executes svn with the given arguments plus authentication flags,
// returning stdout+stderr and a *CommandError on failure.
func (c *ShellClient) run(ctx context.Context, args ...string) ([]byte, error) {
	full := append([]string{args[0], "--non-interactive"}, args[1:]...)

	if c.username != "" {
		full = append(full, "--username", c.username)
	}
	if c.passwordFile != "" {
		password, err := os.ReadFile(c.passwordFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read svn password file: %w", err)
		}
		full = append(full, "--password", strings.TrimSpace(string(password)))
	}

	cmd := exec.CommandContext(ctx, "svn", full...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &CommandError{Args: redactPassword(full), Output: string(output), Err: err}
	}
	return output, nil
}

// redactPassword masks the value following --password so credentials
// never end up in error messages or logs.
func redactPassword(args []string) []string {
	redacted := make([]string, len(args))
	copy(redacted, args)
	for i, arg := range redacted {
		if arg == "--password" && i+1 < len(redacted) {
			redacted[i+1] = "****"
		}
	}
	return redacted
}
