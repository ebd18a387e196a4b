package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"webbank/apperr"
)

// ErrDestinationExists is returned when relocation would overwrite a file.
var ErrDestinationExists = errors.New("destination already exists")

// Relocate moves the artifact at source to destination. A directory source
// is narrowed to the payload file inside it. The move copies into an
// exclusively created destination and then deletes the source; a failed
// source deletion is only logged since the destination is already complete.
// If the copy fails for any reason other than an occupied destination, a
// plain rename is attempted instead.
func (m *Manager) Relocate(source, destination string) error {
	const op = "storage.Relocate"

	src, err := filepath.Abs(source)
	if err != nil {
		return apperr.Wrap(apperr.MoveFailed, op, err)
	}
	dst, err := filepath.Abs(destination)
	if err != nil {
		return apperr.Wrap(apperr.MoveFailed, op, err)
	}

	info, err := os.Stat(src)
	if err != nil {
		return apperr.Wrapf(apperr.MoveFailed, op, err, "source %s", src)
	}
	if info.IsDir() {
		found := FindPayload(src)
		if found == "" {
			return apperr.New(apperr.MoveFailed, op, fmt.Sprintf("no HTML or PDF file found in directory: %s", src))
		}
		src = found
	}

	if exists(dst) {
		return apperr.Wrapf(apperr.MoveFailed, op, ErrDestinationExists, "%s", dst)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return apperr.Wrapf(apperr.MoveFailed, op, err, "create %s", filepath.Dir(dst))
	}

	if err := copyExclusive(src, dst); err != nil {
		if errors.Is(err, os.ErrExist) {
			return apperr.Wrapf(apperr.MoveFailed, op, ErrDestinationExists, "%s", dst)
		}
		m.log.Warn("Copy failed, falling back to rename",
			zap.String("source", src), zap.String("destination", dst), zap.Error(err))
		if exists(dst) {
			return apperr.Wrapf(apperr.MoveFailed, op, ErrDestinationExists, "%s", dst)
		}
		if rerr := os.Rename(src, dst); rerr != nil {
			return apperr.Wrapf(apperr.MoveFailed, op, errors.Join(err, rerr), "move %s to %s", src, dst)
		}
		return nil
	}

	if err := os.Remove(src); err != nil {
		m.log.Warn("Could not remove source after copy",
			zap.String("source", src), zap.Error(err))
	}
	return nil
}

// copyExclusive copies src to a newly created dst. A partially written dst is
// removed on failure.
func copyExclusive(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
