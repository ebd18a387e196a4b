package archiver

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"webbank/apperr"
	"webbank/storage"
)

// UploadPrefix is prepended to the stored name to form an upload's URL key.
const UploadPrefix = "local/uploads/"

// UploadFile is one file offered for import.
type UploadFile struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// UploadResult describes one imported file.
type UploadResult struct {
	OriginalName string `json:"originalName"`
	SavedPath    string `json:"savedPath"`
	Title        string `json:"title"`
	Type         string `json:"type"`
}

// Upload stores uploaded HTML or PDF files and records each one. Every file
// is validated before any is written.
func (s *Service) Upload(ctx context.Context, uploads []UploadFile) ([]UploadResult, error) {
	const op = "archiver.Upload"

	if len(uploads) == 0 {
		return nil, apperr.New(apperr.InvalidInput, op, "no files uploaded")
	}
	for _, u := range uploads {
		if !storage.IsHTMLName(u.Name) && !storage.IsPDFName(u.Name) {
			return nil, apperr.New(apperr.InvalidInput, op, fmt.Sprintf("%s: only HTML and PDF files are allowed", u.Name))
		}
		if u.Size > s.opts.MaxUploadBytes {
			return nil, apperr.New(apperr.InvalidInput, op, fmt.Sprintf("%s: file exceeds %d bytes", u.Name, s.opts.MaxUploadBytes))
		}
	}

	results := make([]UploadResult, 0, len(uploads))
	for _, u := range uploads {
		res, err := s.importOne(ctx, u)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Service) importOne(ctx context.Context, u UploadFile) (UploadResult, error) {
	const op = "archiver.Upload"

	r, err := u.Open()
	if err != nil {
		return UploadResult{}, apperr.Wrapf(apperr.MoveFailed, op, err, "open %s", u.Name)
	}
	defer r.Close()

	saved, err := s.files.StoreUpload(u.Name, r)
	if err != nil {
		return UploadResult{}, apperr.Wrap(apperr.MoveFailed, op, err)
	}

	base := filepath.Base(u.Name)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	if _, err := s.store.Upsert(ctx, UploadPrefix+filepath.Base(saved), title, saved); err != nil {
		if rmErr := s.files.Remove(saved); rmErr != nil {
			s.log.Warn("Could not remove unrecorded upload", zap.String("path", saved), zap.Error(rmErr))
		}
		return UploadResult{}, err
	}

	kind := "HTML"
	if storage.IsPDFName(u.Name) {
		kind = "PDF"
	}
	s.log.Info("File imported", zap.String("name", u.Name), zap.String("path", saved))
	return UploadResult{OriginalName: u.Name, SavedPath: saved, Title: title, Type: kind}, nil
}
