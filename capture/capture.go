// Package capture runs the external site-mirroring tool and works out what it
// actually captured.
package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"webbank/apperr"
	"webbank/metrics"
)

// StubName is the landing file the mirror writes at its output root.
const StubName = "index.html"

// Runner executes a subprocess and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs real processes.
type ExecRunner struct{}

// Run implements Runner with os/exec.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Result describes one finished capture.
type Result struct {
	OutputRoot  string
	CapturedURL string // address recovered from the stub; "" means direct-file capture
	Output      []byte
}

// IsWebpage reports whether the stub named the captured page.
func (r Result) IsWebpage() bool {
	return r.CapturedURL != ""
}

// Invoker wraps the mirroring subprocess.
type Invoker struct {
	binary  string
	timeout time.Duration
	runner  Runner
	log     *zap.Logger
}

// NewInvoker builds an Invoker. A nil runner uses ExecRunner.
func NewInvoker(binary string, runner Runner, log *zap.Logger) *Invoker {
	if runner == nil {
		runner = ExecRunner{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Invoker{binary: binary, runner: runner, log: log}
}

// WithTimeout bounds each capture; zero means no deadline.
func (i *Invoker) WithTimeout(d time.Duration) *Invoker {
	i.timeout = d
	return i
}

// Args builds the mirror's argument list: the page plus one hop, no external
// links, quiet, output into outputDir.
func (i *Invoker) Args(link, outputDir string) []string {
	return []string{link, "-r1", "-O", outputDir, "-%eN0", "-q"}
}

// Capture runs the mirror once for link, writing into outputDir. Each run
// needs its own outputDir since the stub and the mirrored tree are read back
// from it. A failed run is a CaptureFailed error; a run whose stub names no
// URL is still a success.
func (i *Invoker) Capture(ctx context.Context, link, outputDir string) (Result, error) {
	const op = "capture.Capture"

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Result{}, apperr.Wrapf(apperr.CaptureFailed, op, err, "create %s", outputDir)
	}
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	args := i.Args(link, outputDir)
	i.log.Info("Starting capture", zap.String("link", link), zap.String("binary", i.binary), zap.Strings("args", args))

	start := time.Now()
	out, err := i.runner.Run(ctx, i.binary, args...)
	if err != nil {
		metrics.ObserveCapture("failed", time.Since(start))
		i.log.Error("Capture failed", zap.String("link", link), zap.Error(err), zap.String("output", tail(out, 2048)))
		if detail := tail(out, 512); detail != "" {
			return Result{}, apperr.Wrapf(apperr.CaptureFailed, op, err, "%s: %s", i.binary, detail)
		}
		return Result{}, apperr.Wrapf(apperr.CaptureFailed, op, err, "%s", i.binary)
	}
	metrics.ObserveCapture("ok", time.Since(start))

	res := Result{OutputRoot: outputDir, Output: out}
	if u, ok := ExtractURL(filepath.Join(outputDir, StubName)); ok {
		res.CapturedURL = u
		i.log.Info("Capture resolved to webpage", zap.String("link", link), zap.String("url", u))
	} else {
		i.log.Info("Capture has no redirect marker, treating as direct file", zap.String("link", link))
	}
	return res, nil
}

// LookPath reports where the mirror binary resolves on PATH.
func (i *Invoker) LookPath() (string, error) {
	p, err := exec.LookPath(i.binary)
	if err != nil {
		return "", fmt.Errorf("%s not found: %w", i.binary, err)
	}
	return p, nil
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}
