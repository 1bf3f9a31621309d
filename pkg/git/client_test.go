package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Lock(t *testing.T) {
	tmpDir := t.TempDir()
	client := NewClient(tmpDir, ".nodebook.lock", nil)

	unlock, err := client.Lock(context.Background())
	require.NoError(t, err)

	lockPath := filepath.Join(tmpDir, ".nodebook.lock")
	_, err = os.Stat(lockPath)
	assert.NoError(t, err, "lock file should be created")

	unlock()
	_, err = os.Stat(lockPath)
	assert.True(t, os.IsNotExist(err), "lock file should be removed after unlock")
}

func TestClient_LockCustomName(t *testing.T) {
	tmpDir := t.TempDir()
	client := NewClient(tmpDir, "custom.lock", nil)

	unlock, err := client.Lock(context.Background())
	require.NoError(t, err)
	defer unlock()

	_, err = os.Stat(filepath.Join(tmpDir, "custom.lock"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(tmpDir, ".nodebook.lock"))
	assert.True(t, os.IsNotExist(err))
}

func TestClient_LockTimesOutWhileHeld(t *testing.T) {
	tmpDir := t.TempDir()
	holder := NewClient(tmpDir, ".nodebook.lock", nil)
	unlock, err := holder.Lock(context.Background())
	require.NoError(t, err)
	defer unlock()

	waiter := NewClient(tmpDir, ".nodebook.lock", nil)
	waiter.LockTimeout = 50 * time.Millisecond

	start := time.Now()
	_, err = waiter.Lock(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestClient_LockCanceled(t *testing.T) {
	tmpDir := t.TempDir()
	holder := NewClient(tmpDir, ".nodebook.lock", nil)
	unlock, err := holder.Lock(context.Background())
	require.NoError(t, err)
	defer unlock()

	waiter := NewClient(tmpDir, ".nodebook.lock", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = waiter.Lock(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestClient_LockReleasedWhileWaiting(t *testing.T) {
	tmpDir := t.TempDir()
	holder := NewClient(tmpDir, ".nodebook.lock", nil)
	unlock, err := holder.Lock(context.Background())
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		unlock()
	}()

	waiter := NewClient(tmpDir, ".nodebook.lock", nil)
	unlock2, err := waiter.Lock(context.Background())
	require.NoError(t, err)
	unlock2()
}

func TestClient_InitAndCommit(t *testing.T) {
	if !IsInstalled() {
		t.Skip("git not installed")
	}
	ctx := context.Background()
	tmpDir := t.TempDir()
	client := NewClient(tmpDir, ".nodebook.lock", nil)

	assert.False(t, client.IsRepo(ctx))
	require.NoError(t, client.Init(ctx))
	_, err := os.Stat(filepath.Join(tmpDir, ".git"))
	require.NoError(t, err, ".git directory should be created")
	assert.True(t, client.IsRepo(ctx))

	assert.NoError(t, client.Add(ctx), "adding no files is a no-op")

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "g.cnl"), []byte("# A\n"), 0644))
	require.NoError(t, client.Add(ctx, "g.cnl"))
	require.NoError(t, client.Commit(ctx, "feat: create g"))

	out, err := client.Run(ctx, "log", "--format=%s")
	require.NoError(t, err)
	assert.Equal(t, "feat: create g", out)
}
