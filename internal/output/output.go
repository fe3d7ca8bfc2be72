// Package output writes rule files and debug artifacts.
package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/usefulness/keeper/internal/rules"
)

// Sink receives the rendered rule file.
type Sink interface {
	WriteRules(ctx context.Context, content []byte) error
}

// FileSink writes rules to Path atomically.
type FileSink struct {
	Path string
}

func (s FileSink) WriteRules(ctx context.Context, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteFileAtomic(s.Path, content)
}

// Write renders the rules followed by the extra blocks and stores them at
// destination.
func Write(rs []rules.KeepRule, extra []string, opts rules.Options, destination string) error {
	content := rules.NewRuleSet(rs, extra, opts).Render()
	return WriteFileAtomic(destination, []byte(content))
}

// WriteFileAtomic replaces dest with data. The bytes go to a temporary file in
// the same directory which is synced and renamed over dest; on failure the
// temporary file is removed and dest is left as it was.
func WriteFileAtomic(dest string, data []byte) (err error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("rename to %s: %w", dest, err)
	}
	return nil
}
