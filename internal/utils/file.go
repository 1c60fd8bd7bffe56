package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// TempSuffix marks files that are being written. Watchers ignore them.
const TempSuffix = ".codelink-tmp"

var ErrTimeout = errors.New("file operation timed out")

// WriteFileAtomic writes data next to name and renames it into place, so a reader
// never sees a partial file. Parent directories are created as needed.
func WriteFileAtomic(fs afero.Fs, name string, data []byte, perm os.FileMode) error {
	if err := fs.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	tmp := filepath.Join(filepath.Dir(name), "."+path.Base(filepath.ToSlash(name))+"."+TokenHex(4)+TempSuffix)
	f, err := fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		fs.Remove(tmp)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := f.Close(); err != nil {
		fs.Remove(tmp)
		return fmt.Errorf("close temp: %w", err)
	}

	if err := fs.Rename(tmp, name); err != nil {
		fs.Remove(tmp)
		return fmt.Errorf("rename temp: %w", err)
	}
	return nil
}

// RemoveFile removes name. A missing file is not an error.
func RemoveFile(fs afero.Fs, name string) error {
	if err := fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ReadFileIfExists returns nil content and no error for a missing file.
func ReadFileIfExists(fs afero.Fs, name string) ([]byte, error) {
	data, err := afero.ReadFile(fs, name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// WithTimeout runs fn and gives up waiting after timeout. fn keeps running in the
// background when it overruns; its result is discarded.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}

	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return zero, ctx.Err()
	}
}
