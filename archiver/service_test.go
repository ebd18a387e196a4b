package archiver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webbank/apperr"
	"webbank/capture"
	"webbank/database"
	"webbank/models"
	"webbank/storage"
	"webbank/tests"
)

const pageHTML = `<html><head><title>  A
 Page </title></head><body>hello</body></html>`

type fixture struct {
	svc    *Service
	mirror *tests.FakeMirror
	dirs   tests.StorageDirs
	store  *database.Store
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()

	dirs := tests.EnsureTestStorageDirs(t)
	mgr, err := storage.NewManager(storage.Layout{
		TempRoot:    dirs.TempRoot,
		StorageRoot: dirs.StorageRoot,
		UploadsDir:  dirs.UploadsDir,
	}, nil)
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	mirror := &tests.FakeMirror{Files: files}
	inv := capture.NewInvoker("httrack", mirror, nil)
	store := database.NewStore(tests.SetupTestDB(t)).WithClock(clock)

	return &fixture{
		svc:    New(inv, mgr, store, Options{MaxUploadBytes: 1 << 10}, nil),
		mirror: mirror,
		dirs:   dirs,
		store:  store,
	}
}

func webpageFiles() map[string]string {
	return map[string]string{
		"index.html":              tests.RedirectStub("https://example.com/a.html"),
		"example.com/a.html":      pageHTML,
		"example.com/style.css":   "body{}",
		"hts-cache/new.txt":       "cache",
		"example.com/other.html":  "<title>Other</title>",
		"backblue.gif":            "GIF89a",
		"external.com/index.html": "x",
	}
}

func tempEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}

func TestSaveWebpage(t *testing.T) {
	f := newFixture(t, webpageFiles())

	page, err := f.svc.Save(context.Background(), "https://example.com/a.html")
	require.NoError(t, err)

	want := filepath.Join(f.dirs.StorageRoot, "example.com", "a.html")
	assert.Equal(t, "example.com/a.html", page.URL)
	assert.Equal(t, "A Page", page.Title)
	assert.Equal(t, want, page.FilePath)
	assert.True(t, filepath.IsAbs(page.FilePath))
	assert.FileExists(t, want)
	assert.Empty(t, tempEntries(t, f.dirs.TempRoot), "temp root must be reaped")

	calls := f.mirror.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 7)
	runDir := calls[0][4]
	assert.Equal(t, f.dirs.TempRoot, filepath.Dir(runDir), "mirror writes into a per-save directory")
	assert.Equal(t, []string{"httrack", "https://example.com/a.html", "-r1", "-O", runDir, "-%eN0", "-q"}, calls[0])
}

func TestSaveTwiceKeepsIDAndSuffixesFile(t *testing.T) {
	f := newFixture(t, webpageFiles())
	ctx := context.Background()

	first, err := f.svc.Save(ctx, "https://example.com/a.html")
	require.NoError(t, err)
	second, err := f.svc.Save(ctx, "https://example.com/a.html")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.Created.After(first.Created))
	assert.Equal(t, filepath.Join(f.dirs.StorageRoot, "example.com", "a1.html"), second.FilePath)
	assert.FileExists(t, first.FilePath, "earlier artifact is never overwritten")

	pages, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, second.FilePath, pages[0].FilePath)
}

func TestRepeatedSavesProduceDistinctPaths(t *testing.T) {
	f := newFixture(t, webpageFiles())

	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		page, err := f.svc.Save(context.Background(), "https://example.com/a.html")
		require.NoError(t, err)
		assert.False(t, seen[page.FilePath], "path %s reused", page.FilePath)
		seen[page.FilePath] = true
	}
	for _, name := range []string{"a.html", "a1.html", "a2.html", "a3.html"} {
		assert.True(t, seen[filepath.Join(f.dirs.StorageRoot, "example.com", name)], name)
	}
}

func TestSaveDirectPDF(t *testing.T) {
	f := newFixture(t, map[string]string{
		"example.com/files/report.pdf": "%PDF-1.4",
	})

	page, err := f.svc.Save(context.Background(), "https://example.com/files/report.pdf")
	require.NoError(t, err)

	assert.Equal(t, "example.com/files/report.pdf", page.URL)
	assert.Equal(t, "report", page.Title)
	assert.Equal(t, filepath.Join(f.dirs.StorageRoot, "example.com", "report.pdf"), page.FilePath)
	assert.Empty(t, tempEntries(t, f.dirs.TempRoot))
}

func TestSaveRejectsEmptyLink(t *testing.T) {
	f := newFixture(t, webpageFiles())

	_, err := f.svc.Save(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
	assert.Empty(t, f.mirror.Calls(), "mirror must not run for an invalid link")

	var se *SaveError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageIdle, se.Stage)
}

func TestSaveCaptureFailureStillReaps(t *testing.T) {
	f := newFixture(t, nil)
	f.mirror.Err = errors.New("exit status 1")
	busy := tests.WriteFile(t, filepath.Join(f.dirs.TempRoot, "in-flight", "index.html"), "another save")

	_, err := f.svc.Save(context.Background(), "https://example.com/a.html")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.CaptureFailed))
	assert.Equal(t, 500, apperr.HTTPStatus(err))

	var se *SaveError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageCapturing, se.Stage)

	entries := tempEntries(t, f.dirs.TempRoot)
	require.Len(t, entries, 1, "only the failed save's directory is reaped")
	assert.Equal(t, "in-flight", entries[0].Name())
	assert.FileExists(t, busy)
}

func TestSaveArtifactNotFound(t *testing.T) {
	f := newFixture(t, map[string]string{})

	_, err := f.svc.Save(context.Background(), "https://example.com/missing")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.ArtifactNotFound))

	pages, err := f.svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestSaveKeepsTempEntry(t *testing.T) {
	f := newFixture(t, webpageFiles())
	f.svc.opts.TempKeep = "hts-cache"

	_, err := f.svc.Save(context.Background(), "https://example.com/a.html")
	require.NoError(t, err)

	runs := tempEntries(t, f.dirs.TempRoot)
	require.Len(t, runs, 1)
	kept := tempEntries(t, filepath.Join(f.dirs.TempRoot, runs[0].Name()))
	require.Len(t, kept, 1)
	assert.Equal(t, "hts-cache", kept[0].Name())
}

func TestConcurrentSavesKeepCapturesApart(t *testing.T) {
	f := newFixture(t, nil)
	f.mirror.Sites = map[string]map[string]string{
		"https://example.com/a.html": webpageFiles(),
		"other.org/b.html":           {"other.org/b.html": "<title>B Page</title>"},
	}
	links := []string{"https://example.com/a.html", "other.org/b.html"}

	const n = 20
	pages := make([]*models.ArchivedPage, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pages[i], errs[i] = f.svc.Save(context.Background(), links[i%2])
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i], "save %d", i)
		p := pages[i]
		assert.False(t, seen[p.FilePath], "path %s reused", p.FilePath)
		seen[p.FilePath] = true

		content, err := os.ReadFile(p.FilePath)
		require.NoError(t, err)
		if i%2 == 0 {
			assert.Equal(t, "example.com/a.html", p.URL)
			assert.Equal(t, filepath.Join(f.dirs.StorageRoot, "example.com"), filepath.Dir(p.FilePath))
			assert.Equal(t, pageHTML, string(content))
		} else {
			assert.Equal(t, "other.org/b.html", p.URL)
			assert.Equal(t, filepath.Join(f.dirs.StorageRoot, "other.org"), filepath.Dir(p.FilePath))
			assert.Equal(t, "<title>B Page</title>", string(content))
		}
	}
	assert.Empty(t, tempEntries(t, f.dirs.TempRoot))

	list, err := f.svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

// upsertFailing is a Store whose writes fail.
type upsertFailing struct {
	*database.Store
}

func (upsertFailing) Upsert(context.Context, string, string, string) (*models.ArchivedPage, error) {
	return nil, apperr.New(apperr.StoreFailed, "database.Upsert", "database is locked")
}

func TestSaveStoreFailureRemovesArtifact(t *testing.T) {
	f := newFixture(t, webpageFiles())
	f.svc.store = upsertFailing{Store: f.store}

	_, err := f.svc.Save(context.Background(), "https://example.com/a.html")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.StoreFailed))
	assert.Equal(t, 500, apperr.HTTPStatus(err))

	var se *SaveError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageRecording, se.Stage)

	assert.NoFileExists(t, filepath.Join(f.dirs.StorageRoot, "example.com", "a.html"), "unrecorded artifact is removed")
	assert.Empty(t, tempEntries(t, f.dirs.TempRoot))

	pages, err := f.store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestSaveMoveFailure(t *testing.T) {
	f := newFixture(t, webpageFiles())
	// The domain directory cannot be created over a regular file.
	tests.WriteFile(t, filepath.Join(f.dirs.StorageRoot, "example.com"), "not a directory")

	_, err := f.svc.Save(context.Background(), "https://example.com/a.html")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.MoveFailed))

	var se *SaveError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageRelocating, se.Stage)
	assert.Empty(t, tempEntries(t, f.dirs.TempRoot))

	pages, err := f.store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestSaveBinaryLinkFallsBackToLandingPage(t *testing.T) {
	f := newFixture(t, map[string]string{
		"index.html": "<html><head><title>Moved</title></head><body>gone</body></html>",
	})

	page, err := f.svc.Save(context.Background(), "https://example.com/files/report.pdf")
	require.NoError(t, err)

	assert.Equal(t, "example.com/files/report.pdf", page.URL)
	assert.Equal(t, filepath.Join(f.dirs.StorageRoot, "example.com", "report.html"), page.FilePath)
	assert.Equal(t, "Moved", page.Title)
}

func TestSaveRejectsUploadsDomain(t *testing.T) {
	f := newFixture(t, map[string]string{
		"uploads/x.html": "<title>X</title>",
	})

	_, err := f.svc.Save(context.Background(), "uploads/x.html")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
	assert.Empty(t, tempEntries(t, f.dirs.UploadsDir))
	assert.Empty(t, tempEntries(t, f.dirs.TempRoot))
}

func TestListReportsMissingArtifacts(t *testing.T) {
	f := newFixture(t, webpageFiles())
	ctx := context.Background()

	page, err := f.svc.Save(ctx, "https://example.com/a.html")
	require.NoError(t, err)
	_, err = f.store.Upsert(ctx, "gone.example/x", "Gone", filepath.Join(f.dirs.StorageRoot, "gone.example", "x.html"))
	require.NoError(t, err)

	pages, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	byURL := map[string]bool{}
	for _, p := range pages {
		byURL[p.URL] = p.Exists
	}
	assert.True(t, byURL[page.URL])
	assert.False(t, byURL["gone.example/x"])
}

func TestListResolvesDirectoryPaths(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	dir := filepath.Join(f.dirs.StorageRoot, "example.com", "b.html")
	inner := tests.WriteFile(t, filepath.Join(dir, "index.html"), "<title>B</title>")
	_, err := f.store.Upsert(ctx, "example.com/b.html", "B", dir)
	require.NoError(t, err)

	pages, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.True(t, pages[0].Exists)
	assert.Equal(t, inner, pages[0].FilePath)

	stored, err := f.store.FindByURL(ctx, "example.com/b.html")
	require.NoError(t, err)
	assert.Equal(t, dir, stored.FilePath, "stored row is not rewritten")
}

func TestDeleteRemovesRecordAndFile(t *testing.T) {
	f := newFixture(t, webpageFiles())
	ctx := context.Background()

	page, err := f.svc.Save(ctx, "https://example.com/a.html")
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, page.ID))
	assert.NoFileExists(t, page.FilePath)

	_, err = f.store.GetByID(ctx, page.ID)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestDeleteSucceedsWhenFileMissing(t *testing.T) {
	f := newFixture(t, webpageFiles())
	ctx := context.Background()

	page, err := f.svc.Save(ctx, "https://example.com/a.html")
	require.NoError(t, err)
	require.NoError(t, os.Remove(page.FilePath))

	require.NoError(t, f.svc.Delete(ctx, page.ID))
	pages, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestDeleteLeavesFilesOutsideStorage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	outside := tests.WriteFile(t, filepath.Join(t.TempDir(), "mine.html"), "keep me")
	page, err := f.store.Upsert(ctx, "elsewhere/mine.html", "Mine", outside)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, page.ID))
	assert.FileExists(t, outside)
}

func TestDeleteUnknownID(t *testing.T) {
	f := newFixture(t, nil)

	err := f.svc.Delete(context.Background(), 42)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
	assert.Equal(t, 404, apperr.HTTPStatus(err))
}

func TestRenameTitle(t *testing.T) {
	f := newFixture(t, webpageFiles())
	ctx := context.Background()

	page, err := f.svc.Save(ctx, "https://example.com/a.html")
	require.NoError(t, err)

	renamed, err := f.svc.RenameTitle(ctx, page.ID, "  Mine  ")
	require.NoError(t, err)
	assert.Equal(t, "Mine", renamed.Title)
	assert.Equal(t, page.FilePath, renamed.FilePath)

	_, err = f.svc.RenameTitle(ctx, page.ID, " ")
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))

	_, err = f.svc.RenameTitle(ctx, 999, "x")
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func upload(name, content string) UploadFile {
	return UploadFile{
		Name: name,
		Size: int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewBufferString(content)), nil
		},
	}
}

func TestUpload(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	results, err := f.svc.Upload(ctx, []UploadFile{
		upload("notes.html", "<title>Notes</title>"),
		upload("paper.PDF", "%PDF-1.4"),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "notes.html", results[0].OriginalName)
	assert.Equal(t, "notes", results[0].Title)
	assert.Equal(t, "HTML", results[0].Type)
	assert.Equal(t, f.dirs.UploadsDir, filepath.Dir(results[0].SavedPath))
	assert.FileExists(t, results[0].SavedPath)
	assert.Equal(t, "PDF", results[1].Type)

	pages, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	for _, p := range pages {
		assert.Contains(t, p.URL, UploadPrefix)
		assert.True(t, p.Exists)
	}
}

func TestUploadValidatesBeforeWriting(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Upload(context.Background(), []UploadFile{
		upload("ok.html", "<p>ok</p>"),
		upload("script.js", "alert(1)"),
	})
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
	assert.Empty(t, tempEntries(t, f.dirs.UploadsDir))

	big := upload("big.html", string(make([]byte, 2<<10)))
	_, err = f.svc.Upload(context.Background(), []UploadFile{big})
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))

	_, err = f.svc.Upload(context.Background(), nil)
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
}
