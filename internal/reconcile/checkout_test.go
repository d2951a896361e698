package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutControl_MissingTarget(t *testing.T) {
	ctx := context.Background()
	client := &mockSvnClient{}

	// Nested target so the parent directory has to be created too.
	target := filepath.Join(t.TempDir(), "nested", "deeper", "wc")
	control := NewCheckoutControl("trunk", "https://svn.example.com/trunk", target, client, testLogger())

	require.NoError(t, control.Reconcile(ctx))

	assert.Equal(t, 1, client.checkoutCalls, "checkout must run exactly once")
	assert.Zero(t, client.updateCalls, "update must not run for a missing target")
	assert.DirExists(t, filepath.Dir(target), "parent directories must be created")
}

func TestCheckoutControl_ExistingWorkingCopy(t *testing.T) {
	ctx := context.Background()
	client := &mockSvnClient{workingCopy: true}

	target := t.TempDir()
	control := NewCheckoutControl("trunk", "https://svn.example.com/trunk", target, client, testLogger())

	require.NoError(t, control.Reconcile(ctx))

	assert.Equal(t, 1, client.updateCalls, "update must run exactly once")
	assert.Zero(t, client.checkoutCalls, "checkout must not run for an existing working copy")
}

func TestCheckoutControl_ExistingNotWorkingCopy(t *testing.T) {
	ctx := context.Background()
	client := &mockSvnClient{workingCopy: false}

	target := t.TempDir()
	control := NewCheckoutControl("trunk", "https://svn.example.com/trunk", target, client, testLogger())

	err := control.Reconcile(ctx)
	require.Error(t, err)

	var notWC *NotWorkingCopyError
	require.ErrorAs(t, err, &notWC)
	assert.Equal(t, target, notWC.Path)
	assert.Zero(t, client.checkoutCalls, "no mutation may be attempted")
	assert.Zero(t, client.updateCalls, "no mutation may be attempted")
}

func TestCheckoutControl_CheckoutFailurePropagates(t *testing.T) {
	ctx := context.Background()
	wantErr := errors.New("connection refused")
	client := &mockSvnClient{checkoutErr: wantErr}

	target := filepath.Join(t.TempDir(), "wc")
	control := NewCheckoutControl("trunk", "https://svn.example.com/trunk", target, client, testLogger())

	err := control.Reconcile(ctx)
	require.ErrorIs(t, err, wantErr)
}

func TestCheckoutControl_Idempotent(t *testing.T) {
	ctx := context.Background()
	client := &mockSvnClient{}

	target := filepath.Join(t.TempDir(), "wc")
	control := NewCheckoutControl("trunk", "https://svn.example.com/trunk", target, client, testLogger())

	require.NoError(t, control.Reconcile(ctx))

	// After checkout the target is a working copy; repeated calls update.
	require.NoError(t, os.MkdirAll(target, 0755))
	client.workingCopy = true

	require.NoError(t, control.Reconcile(ctx))
	require.NoError(t, control.Reconcile(ctx))

	assert.Equal(t, 1, client.checkoutCalls)
	assert.Equal(t, 2, client.updateCalls)
}
