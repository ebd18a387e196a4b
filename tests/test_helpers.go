// Package tests holds helpers shared by the package test suites.
package tests

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"webbank/models"
)

// SetupTestDB opens a private in-memory SQLite database for t and migrates the
// schema. The database disappears when t finishes.
func SetupTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("Failed to connect to in-memory test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.ArchivedPage{}); err != nil {
		t.Fatalf("Failed to auto-migrate test database schema: %v", err)
	}
	t.Cleanup(func() { TeardownTestDB(db) })
	return db
}

// TeardownTestDB closes the test database connection.
func TeardownTestDB(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// ClearPages deletes all rows from the websites table.
func ClearPages(db *gorm.DB) error {
	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.ArchivedPage{}).Error; err != nil {
		return fmt.Errorf("failed to delete archived pages: %w", err)
	}
	return nil
}

// CreateTestApp initializes a new Fiber app for testing purposes.
func CreateTestApp() *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: 256 << 20,
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			ctx.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
			return ctx.Status(code).SendString(err.Error())
		},
	})
	return app
}

// StorageDirs are the temporary directories a test archiver writes to.
type StorageDirs struct {
	TempRoot    string
	StorageRoot string
	UploadsDir  string
}

// EnsureTestStorageDirs creates temp, storage and upload directories under
// t.TempDir().
func EnsureTestStorageDirs(t testing.TB) StorageDirs {
	t.Helper()

	base := t.TempDir()
	dirs := StorageDirs{
		TempRoot:    filepath.Join(base, "WebsiteTempDatabase"),
		StorageRoot: filepath.Join(base, "DownloadedHTML"),
		UploadsDir:  filepath.Join(base, "DownloadedHTML", "uploads"),
	}
	for _, dir := range []string{dirs.TempRoot, dirs.StorageRoot, dirs.UploadsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("failed to create directory %s: %v", dir, err)
		}
	}
	return dirs
}

// WriteFile creates path (and its parents) with content.
func WriteFile(t testing.TB, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// FakeMirror stands in for the mirroring subprocess. On every run it writes
// Files (paths relative to the -O output root) and returns Output and Err.
// Sites overrides Files for the links it lists.
type FakeMirror struct {
	Files  map[string]string
	Sites  map[string]map[string]string
	Output []byte
	Err    error

	mu    sync.Mutex
	calls [][]string
}

// Run implements the capture runner contract.
func (f *FakeMirror) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	if f.Err != nil {
		return f.Output, f.Err
	}
	root := outputRoot(args)
	if root == "" {
		return nil, fmt.Errorf("fake mirror: no -O argument in %v", args)
	}
	files := f.Files
	if len(args) > 0 {
		if site, ok := f.Sites[args[0]]; ok {
			files = site
		}
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return nil, err
		}
	}
	return f.Output, nil
}

// Calls returns the argument vectors of every run so far.
func (f *FakeMirror) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func outputRoot(args []string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-O" {
			return args[i+1]
		}
	}
	return ""
}

// RedirectStub is an index.html like the one the mirror writes at its output
// root, pointing at target.
func RedirectStub(target string) string {
	return fmt.Sprintf(`<html><head><meta HTTP-EQUIV="Refresh" CONTENT="0; URL=%s"></head>
<body><a href="%s">page</a> mirrored with <a href="http://www.httrack.com/">HTTrack</a></body></html>`, target, target)
}
