package repository

import (
	"io"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
)

// writeFileAtomic writes data so a crash never leaves a partial file
// visible under the final name: write to a temporary file in the same
// directory, fsync, then rename into place.
func writeFileAtomic(path string, data []byte) error {
	return writeStreamAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func writeStreamAtomic(path string, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return goerr.Wrap(err, "failed to create directory", goerr.V("dir", dir))
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return goerr.Wrap(err, "failed to create temporary file", goerr.V("dir", dir))
	}
	defer func() {
		// No-op after a successful rename
		_ = os.Remove(tmp.Name())
	}()

	if err := fill(tmp); err != nil {
		_ = tmp.Close()
		return goerr.Wrap(err, "failed to write temporary file", goerr.V("path", tmp.Name()))
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return goerr.Wrap(err, "failed to sync temporary file", goerr.V("path", tmp.Name()))
	}
	if err := tmp.Close(); err != nil {
		return goerr.Wrap(err, "failed to close temporary file", goerr.V("path", tmp.Name()))
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return goerr.Wrap(err, "failed to rename into place", goerr.V("path", path))
	}
	return nil
}
