package runner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const tempFilePrefix = "opencode-request-"

// Cleanup tuning. Variables so tests can shorten the schedule.
var (
	removeAttempts = 5
	removeBackoff  = 200 * time.Millisecond
	removeFile     = os.Remove
	renameFile     = os.Rename
)

// uniqueSuffix returns "<unix-ms>-<8 hex chars>".
func uniqueSuffix() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// TempDir returns dir, or the system temp directory when dir is empty.
func TempDir(dir string) string {
	if dir == "" {
		return os.TempDir()
	}
	return dir
}

// writeRequestFile stores payload in a freshly named file inside dir.
func writeRequestFile(dir string, payload []byte) (string, error) {
	dir = TempDir(dir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create temp dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, tempFilePrefix+uniqueSuffix()+".json")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create request file: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		removeFile(path) //nolint:errcheck
		return "", fmt.Errorf("write request file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close request file: %w", err)
	}
	return path, nil
}

// releaseRequestFile deletes path, retrying with exponential backoff. When
// every attempt fails the file is renamed out of the way instead. Failures
// are logged only; the result reports whether the file was removed.
func releaseRequestFile(path string, logger *zap.Logger) bool {
	if logger == nil {
		logger = zap.NewNop()
	}
	delay := removeBackoff
	var lastErr error
	for attempt := 1; attempt <= removeAttempts; attempt++ {
		err := removeFile(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return true
		}
		lastErr = err
		logger.Debug("runner.tempfile.remove_retry",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < removeAttempts {
			time.Sleep(delay)
			delay *= 2
		}
	}

	parked := fmt.Sprintf("%s.%s.deleted", path, uniqueSuffix())
	if err := renameFile(path, parked); err != nil {
		logger.Warn("runner.tempfile.leaked",
			zap.String("path", path),
			zap.NamedError("remove_error", lastErr),
			zap.Error(err),
		)
		return false
	}
	logger.Warn("runner.tempfile.renamed",
		zap.String("path", path),
		zap.String("renamed_to", parked),
		zap.Error(lastErr),
	)
	return false
}
