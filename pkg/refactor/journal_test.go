package refactor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Journal ---

func TestJournal_Rollback(t *testing.T) {
	dir := t.TempDir()
	parent := filepath.Join(dir, "src", "lib.rs")
	require.NoError(t, os.MkdirAll(filepath.Dir(parent), 0o755))
	require.NoError(t, os.WriteFile(parent, []byte("mod a;\n"), 0o600))

	j := NewJournal("req-1")
	assert.True(t, j.Empty())

	newDir := filepath.Join(dir, "src", "billing")
	require.NoError(t, os.Mkdir(newDir, 0o755))
	j.madeDir(newDir)

	module := filepath.Join(newDir, "plan.rs")
	require.NoError(t, os.WriteFile(module, []byte("pub struct Plan;\n"), 0o644))
	j.created(module)

	j.modified(parent, []byte("mod a;\n"), 0o600)
	require.NoError(t, os.WriteFile(parent, []byte("mod a;\nmod billing;\n"), 0o600))

	changes := j.Changes()
	require.Len(t, changes, 3)
	assert.Equal(t, []Op{OpMkdir, OpCreate, OpModify}, []Op{changes[0].Op, changes[1].Op, changes[2].Op})

	require.NoError(t, j.Rollback())
	assert.True(t, j.Empty())
	assert.NoFileExists(t, module)
	assert.NoDirExists(t, newDir)
	assert.Equal(t, "mod a;\n", read(t, parent))

	info, err := os.Stat(parent)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestJournal_RollbackMove(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "models.rs")
	to := filepath.Join(dir, "models", "mod.rs")
	require.NoError(t, os.WriteFile(from, []byte("mod a;\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "models"), 0o755))
	require.NoError(t, os.Rename(from, to))

	j := NewJournal("req-2")
	j.moved(from, to)
	require.NoError(t, j.Rollback())
	assert.FileExists(t, from)
	assert.NoFileExists(t, to)
}

func TestJournal_RollbackKeepsFilledDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "billing")
	require.NoError(t, os.Mkdir(dir, 0o755))

	j := NewJournal("req-3")
	j.madeDir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.rs"), nil, 0o644))

	require.NoError(t, j.Rollback())
	assert.DirExists(t, dir)
}

func TestJournal_RollbackToleratesMissingFiles(t *testing.T) {
	j := NewJournal("req-4")
	j.created(filepath.Join(t.TempDir(), "gone.rs"))
	assert.NoError(t, j.Rollback())
}

func TestJournal_RollbackReportsFailures(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal("req-5")
	j.moved(filepath.Join(dir, "a.rs"), filepath.Join(dir, "missing", "mod.rs"))

	err := j.Rollback()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undo move")
	assert.True(t, j.Empty())
}

// --- File locks ---

func TestFileLocks_Serializes(t *testing.T) {
	l := newFileLocks()
	ctx := context.Background()

	release, err := l.acquire(ctx, "/src/lib.rs")
	require.NoError(t, err)
	assert.Equal(t, 1, l.held())

	acquired := make(chan struct{})
	go func() {
		r, err := l.acquire(ctx, "/src/lib.rs")
		if err == nil {
			close(acquired)
			r()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held lock")
	case <-time.After(50 * time.Millisecond):
	}

	// Another path is independent.
	other, err := l.acquire(ctx, "/src/main.rs")
	require.NoError(t, err)
	other()

	release()
	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock")
	}

	assert.Eventually(t, func() bool { return l.held() == 0 }, time.Second, 10*time.Millisecond)
}

func TestFileLocks_CanceledWait(t *testing.T) {
	l := newFileLocks()
	release, err := l.acquire(context.Background(), "/src/lib.rs")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.acquire(ctx, "/src/lib.rs")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, l.held())
}

// --- Errors ---

func TestError(t *testing.T) {
	err := newError(KindEnvironment, StateParentUpdated, ErrNoRegistrationFile, "no file can register %s", "plan")
	assert.Equal(t, KindEnvironment, KindOf(err))
	assert.ErrorIs(t, err, ErrNoRegistrationFile)
	assert.Contains(t, err.Error(), "no file can register plan")

	assert.Equal(t, Kind(""), KindOf(os.ErrNotExist))
}

func TestState(t *testing.T) {
	assert.True(t, StateDone.Terminal())
	assert.True(t, StateAborted.Terminal())
	assert.False(t, StateValidating.Terminal())
	assert.False(t, StateContentGenerated.Mutated())
	assert.True(t, StateFileWritten.Mutated())
}
