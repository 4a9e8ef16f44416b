// internal/screenshot/writer.go
package screenshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Screenshotter captures a full-page screenshot as PNG bytes.
type Screenshotter interface {
	CaptureScreenshot(ctx context.Context) ([]byte, error)
}

// Writer stores case screenshots under a single directory with timestamped
// names. Callers treat failures as best effort; a screenshot never decides a
// case outcome.
type Writer struct {
	logger *zap.Logger
	dir    string
	now    func() time.Time
}

// NewWriter creates the target directory if needed.
func NewWriter(dir string, logger *zap.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create screenshot directory '%s': %w", dir, err)
	}
	return &Writer{
		logger: logger.Named("screenshot"),
		dir:    dir,
		now:    time.Now,
	}, nil
}

// Capture grabs a screenshot from the session and writes it to
// <dir>/case_<index>_<timestamp>.png, returning the written path.
func (w *Writer) Capture(ctx context.Context, shooter Screenshotter, caseIndex int) (string, error) {
	buf, err := shooter.CaptureScreenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("screenshot capture failed: %w", err)
	}

	name := fmt.Sprintf("case_%d_%s.png", caseIndex, w.now().Format("20060102_150405"))
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("screenshot write failed: %w", err)
	}

	w.logger.Debug("Screenshot written.", zap.String("path", path), zap.Int("bytes", len(buf)))
	return path, nil
}
