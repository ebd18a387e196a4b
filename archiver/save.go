package archiver

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"webbank/apperr"
	"webbank/capture"
	"webbank/metrics"
	"webbank/models"
	"webbank/storage"
	"webbank/urlinfo"
)

// Stage is a step of the save state machine.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageCapturing  Stage = "capturing"
	StageLocating   Stage = "locating"
	StageResolving  Stage = "resolving"
	StageRelocating Stage = "relocating"
	StageRecording  Stage = "recording"
	StageDone       Stage = "done"
	StageError      Stage = "error"
)

// Capture modes.
const (
	ModeWebpage = "webpage"
	ModeDirect  = "direct"
)

// SaveError reports the stage a save failed in. The wrapped error keeps its
// apperr kind.
type SaveError struct {
	Stage Stage
	Err   error
}

func (e *SaveError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// saveRun is the state carried through one save.
type saveRun struct {
	link   string
	stage  Stage
	mode   string
	dir    string // this run's capture directory
	result capture.Result
	info   models.URLInfo
	paths  models.CapturePaths
	page   *models.ArchivedPage
	unlock func()
}

type step func(ctx context.Context, run *saveRun) (Stage, error)

// Save captures link and archives the result. Every save mirrors into its own
// capture directory, which is reaped before Save returns whatever the
// outcome, so concurrent saves never see each other's files.
func (s *Service) Save(ctx context.Context, link string) (*models.ArchivedPage, error) {
	run := &saveRun{link: strings.TrimSpace(link), stage: StageIdle}
	start := time.Now()

	page, err := s.drive(ctx, run)

	outcome := "ok"
	failed := StageDone
	if err != nil {
		outcome = "error"
		var se *SaveError
		if errors.As(err, &se) {
			failed = se.Stage
		}
	}
	metrics.ObserveSave(string(failed), outcome, time.Since(start))
	return page, err
}

func (s *Service) drive(ctx context.Context, run *saveRun) (*models.ArchivedPage, error) {
	defer func() {
		if run.unlock != nil {
			run.unlock()
		}
		if run.dir == "" {
			return
		}
		if n := s.files.ReapCapture(run.dir, s.opts.TempKeep); n > 0 {
			s.log.Debug("Capture directory reaped", zap.String("path", run.dir), zap.Int("entries", n))
		}
	}()

	steps := map[Stage]step{
		StageIdle:       s.submit,
		StageCapturing:  s.capture,
		StageLocating:   s.locate,
		StageResolving:  s.resolve,
		StageRelocating: s.relocate,
		StageRecording:  s.record,
	}

	for run.stage != StageDone {
		next, err := steps[run.stage](ctx, run)
		if err != nil {
			s.log.Error("Save failed",
				zap.String("link", run.link),
				zap.String("stage", string(run.stage)),
				zap.String("kind", string(apperr.KindOf(err))),
				zap.Error(err),
			)
			failed := run.stage
			run.stage = StageError
			return nil, &SaveError{Stage: failed, Err: err}
		}
		s.log.Debug("Save stage complete", zap.String("link", run.link), zap.String("from", string(run.stage)), zap.String("to", string(next)))
		run.stage = next
	}

	s.log.Info("Page archived",
		zap.String("link", run.link),
		zap.String("mode", run.mode),
		zap.Uint("id", run.page.ID),
		zap.String("path", run.page.FilePath),
	)
	return run.page, nil
}

// submit validates the link before any subprocess runs.
func (s *Service) submit(_ context.Context, run *saveRun) (Stage, error) {
	if _, err := urlinfo.ParseDirect(run.link); err != nil {
		return StageError, err
	}
	return StageCapturing, nil
}

func (s *Service) capture(ctx context.Context, run *saveRun) (Stage, error) {
	dir, err := s.files.NewCaptureDir()
	if err != nil {
		return StageError, apperr.Wrap(apperr.CaptureFailed, "archiver.capture", err)
	}
	run.dir = dir

	res, err := s.capturer.Capture(ctx, run.link, dir)
	if err != nil {
		return StageError, err
	}
	run.result = res
	return StageLocating, nil
}

func (s *Service) locate(_ context.Context, run *saveRun) (Stage, error) {
	const op = "archiver.locate"

	run.mode = ModeDirect
	target := run.link
	if run.result.IsWebpage() {
		info, err := urlinfo.ParseWebpage(run.result.CapturedURL)
		if err == nil {
			run.mode = ModeWebpage
			run.info = info
			target = run.result.CapturedURL
		} else {
			s.log.Warn("Unusable captured URL, falling back to direct mode", zap.String("url", run.result.CapturedURL), zap.Error(err))
		}
	}
	if run.mode == ModeDirect {
		info, err := urlinfo.ParseDirect(run.link)
		if err != nil {
			return StageError, err
		}
		run.info = info
	}

	root := run.result.OutputRoot
	if root == "" {
		root = run.dir
	}
	src := storage.Locate(root, target)
	if src == "" {
		return StageError, apperr.New(apperr.ArtifactNotFound, op, "no captured file found for "+target)
	}

	paths, err := s.files.ConstructPaths(root, run.info)
	if err != nil {
		return StageError, err
	}
	run.paths = paths
	run.paths.SourcePath = src

	// The stored file takes the extension of what was actually captured when
	// either side is a binary: an extensionless link can deliver a PDF, and a
	// PDF link can fall back to the mirror's HTML landing page.
	dst := run.paths.DestinationPath
	if !strings.EqualFold(filepath.Ext(src), filepath.Ext(dst)) && (storage.IsBinaryName(src) || storage.IsBinaryName(dst)) {
		run.paths.DestinationPath = strings.TrimSuffix(dst, filepath.Ext(dst)) + filepath.Ext(src)
	}
	return StageResolving, nil
}

// resolve takes the per-URL lock held until the record is written.
func (s *Service) resolve(ctx context.Context, run *saveRun) (Stage, error) {
	run.unlock = s.locks.Lock(run.info.URL)
	paths, err := s.files.ResolveDestination(ctx, s.store, run.paths, run.info.URL)
	if err != nil {
		return StageError, err
	}
	run.paths = paths
	return StageRelocating, nil
}

func (s *Service) relocate(_ context.Context, run *saveRun) (Stage, error) {
	if err := s.files.Relocate(run.paths.SourcePath, run.paths.DestinationPath); err != nil {
		return StageError, err
	}
	return StageRecording, nil
}

func (s *Service) record(ctx context.Context, run *saveRun) (Stage, error) {
	title := s.files.ReadTitle(run.paths.DestinationPath)
	page, err := s.store.Upsert(ctx, run.info.URL, title, run.paths.DestinationPath)
	if err != nil {
		if rmErr := s.files.Remove(run.paths.DestinationPath); rmErr != nil {
			s.log.Warn("Could not remove unrecorded artifact", zap.String("path", run.paths.DestinationPath), zap.Error(rmErr))
		}
		return StageError, err
	}
	run.page = page
	return StageDone, nil
}
