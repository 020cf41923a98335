//go:build !windows

package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-cli")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func drain(p *Process) []string {
	var out []string
	for line := range p.Lines() {
		out = append(out, line)
	}
	return out
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestStartDeliversPayloadForEveryStyle(t *testing.T) {
	exe := writeScript(t, `printf 'arg:%s\n' "$@"; cat`)
	payload := []byte("{\"type\":\"text\",\"part\":{\"text\":\"hi\"}}\n{\"type\":\"step_finish\"}\n")

	for _, style := range []Style{StyleDirect, StyleShellPipe, StyleShellRedirect} {
		t.Run(style.String(), func(t *testing.T) {
			tmp := t.TempDir()
			p, err := New(nil, nil).Start(context.Background(), Invocation{
				Executable: exe,
				Args:       []string{"run", "two words", "it's"},
				Payload:    payload,
				Style:      style,
				TempDir:    tmp,
				Timeout:    10 * time.Second,
			})
			require.NoError(t, err)

			lines := drain(p)
			require.NoError(t, p.Wait())
			assert.Equal(t, []string{
				"arg:run",
				"arg:two words",
				"arg:it's",
				`{"type":"text","part":{"text":"hi"}}`,
				`{"type":"step_finish"}`,
			}, lines)
			assert.Empty(t, dirEntries(t, tmp), "request file must be removed")
		})
	}
}

func TestWaitReportsNonZeroExit(t *testing.T) {
	exe := writeScript(t, `echo "partial"; echo "something broke" >&2; exit 3`)
	p, err := New(nil, nil).Start(context.Background(), Invocation{Executable: exe, TempDir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, []string{"partial"}, drain(p))
	err = p.Wait()
	var perr *ProcessError
	require.True(t, errors.As(err, &perr), "got %v", err)
	assert.Equal(t, 3, perr.ExitCode)
	assert.Equal(t, "something broke", perr.Stderr)
	assert.Equal(t, "CLI exited with code 3. Stderr: something broke", perr.Error())
}

func TestStderrExcerptIsBounded(t *testing.T) {
	exe := writeScript(t, `i=0; while [ $i -lt 200 ]; do printf 'xxxxxxxxxx' >&2; i=$((i+1)); done; exit 1`)
	p, err := New(nil, nil).Start(context.Background(), Invocation{Executable: exe, TempDir: t.TempDir()})
	require.NoError(t, err)
	drain(p)

	var perr *ProcessError
	require.True(t, errors.As(p.Wait(), &perr))
	assert.Len(t, perr.Stderr, stderrExcerptLen)
}

func TestWaitReportsTimeout(t *testing.T) {
	exe := writeScript(t, `exec sleep 30`)
	start := time.Now()
	p, err := New(nil, nil).Start(context.Background(), Invocation{
		Executable: exe,
		TempDir:    t.TempDir(),
		Timeout:    200 * time.Millisecond,
	})
	require.NoError(t, err)
	drain(p)

	var perr *ProcessError
	require.True(t, errors.As(p.Wait(), &perr))
	assert.True(t, perr.TimedOut)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestStopKillsRunningProcess(t *testing.T) {
	exe := writeScript(t, `echo ready; exec sleep 30`)
	tmp := t.TempDir()
	p, err := New(nil, nil).Start(context.Background(), Invocation{Executable: exe, TempDir: tmp})
	require.NoError(t, err)

	require.Equal(t, "ready", <-p.Lines())
	pid := p.cmd.Process.Pid
	p.Stop()
	p.Stop()

	require.ErrorIs(t, p.Wait(), ErrStopped)
	assert.Error(t, syscall.Kill(pid, 0), "process must no longer be running")
	assert.Empty(t, dirEntries(t, tmp))
}

func TestParentCancellationSurfacesContextError(t *testing.T) {
	exe := writeScript(t, `echo ready; exec sleep 30`)
	ctx, cancel := context.WithCancel(context.Background())
	p, err := New(nil, nil).Start(ctx, Invocation{Executable: exe, TempDir: t.TempDir()})
	require.NoError(t, err)

	<-p.Lines()
	cancel()
	drain(p)
	require.ErrorIs(t, p.Wait(), context.Canceled)
}

func TestStartFailsForMissingExecutable(t *testing.T) {
	tmp := t.TempDir()
	_, err := New(nil, nil).Start(context.Background(), Invocation{
		Executable: filepath.Join(tmp, "does-not-exist"),
		TempDir:    tmp,
	})
	var perr *ProcessError
	require.True(t, errors.As(err, &perr))
	assert.True(t, strings.HasPrefix(perr.Error(), "failed to run CLI"))
	assert.Empty(t, dirEntries(t, tmp))
}

func TestReleaseRequestFileRenamesOnPersistentFailure(t *testing.T) {
	origRemove, origAttempts, origBackoff := removeFile, removeAttempts, removeBackoff
	t.Cleanup(func() {
		removeFile, removeAttempts, removeBackoff = origRemove, origAttempts, origBackoff
	})

	calls := 0
	removeFile = func(string) error {
		calls++
		return errors.New("file is locked")
	}
	removeAttempts = 3
	removeBackoff = time.Millisecond

	dir := t.TempDir()
	path, err := writeRequestFile(dir, []byte("{}"))
	require.NoError(t, err)

	assert.False(t, releaseRequestFile(path, nil))

	assert.Equal(t, 3, calls)
	names := dirEntries(t, dir)
	require.Len(t, names, 1)
	assert.True(t, strings.HasPrefix(names[0], filepath.Base(path)+"."))
	assert.True(t, strings.HasSuffix(names[0], ".deleted"))
}

func TestReleaseRequestFileRetriesUntilSuccess(t *testing.T) {
	origRemove, origBackoff := removeFile, removeBackoff
	t.Cleanup(func() { removeFile, removeBackoff = origRemove, origBackoff })

	calls := 0
	removeFile = func(p string) error {
		calls++
		if calls < 2 {
			return errors.New("busy")
		}
		return os.Remove(p)
	}
	removeBackoff = time.Millisecond

	dir := t.TempDir()
	path, err := writeRequestFile(dir, []byte("{}"))
	require.NoError(t, err)

	assert.True(t, releaseRequestFile(path, nil))
	assert.Equal(t, 2, calls)
	assert.Empty(t, dirEntries(t, dir))
}

func TestRequestFileNaming(t *testing.T) {
	dir := t.TempDir()
	a, err := writeRequestFile(dir, []byte("a"))
	require.NoError(t, err)
	b, err := writeRequestFile(dir, []byte("b"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(filepath.Base(a), tempFilePrefix))
	assert.True(t, strings.HasSuffix(a, ".json"))

	info, err := os.Stat(a)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestTempDirFallsBackToSystemDir(t *testing.T) {
	assert.Equal(t, os.TempDir(), TempDir(""))
	assert.Equal(t, "/custom", TempDir("/custom"))
}
