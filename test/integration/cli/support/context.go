package support

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/barcodekit/internal/testutil"
)

// TestContext is the per-scenario state shared by all step definitions.
// Everything a scenario writes lives under TempDir, which Cleanup removes.
type TestContext struct {
	// Last CLI invocation. LastOutput is stdout followed by stderr;
	// LastStdout is stdout alone for machine-readable assertions.
	LastCommand   string
	LastOutput    string
	LastStdout    string
	LastError     error
	LastExitCode  int
	LastStartTime time.Time
	LastDuration  time.Duration

	// WorkingDir is the module root; commands run there.
	WorkingDir string
	TempDir    string
	EnvVars    []string

	// Either a `barcodekit serve` child process or an in-process httptest server.
	ServerProcess  *serverProcess
	ServerPort     int
	ServerHost     string
	HTTPTestServer *HTTPTestServerWrapper

	LastHTTPStatusCode int
	LastHTTPResponse   []byte
	LastHTTPHeaders    http.Header

	ScanSession *ScanClient
}

// NewTestContext prepares a scenario rooted at the module directory with a
// fresh temp directory.
func NewTestContext() (*TestContext, error) {
	root, err := testutil.GetProjectRoot()
	if err != nil {
		if root, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	tempDir, err := os.MkdirTemp("", "barcodekit-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &TestContext{
		WorkingDir:      root,
		TempDir:         tempDir,
		ServerPort:      8080,
		ServerHost:      "localhost",
		LastHTTPHeaders: http.Header{},
	}, nil
}

// StopServer stops whichever server the scenario started.
func (testCtx *TestContext) StopServer() error {
	if testCtx.HTTPTestServer != nil {
		testCtx.stopTestHTTPServer()
	}
	return testCtx.StopServerProcess()
}

// Cleanup closes the scan session, stops servers and removes TempDir.
func (testCtx *TestContext) Cleanup() error {
	if testCtx.ScanSession != nil {
		testCtx.ScanSession.Close()
		testCtx.ScanSession = nil
	}

	var errs []error
	if err := testCtx.StopServer(); err != nil {
		errs = append(errs, fmt.Errorf("stop server: %w", err))
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil {
		errs = append(errs, fmt.Errorf("remove %s: %w", testCtx.TempDir, err))
	}
	return errors.Join(errs...)
}

// AddEnvVar adds an environment variable for command execution.
func (testCtx *TestContext) AddEnvVar(name, value string) {
	testCtx.EnvVars = append(testCtx.EnvVars, name+"="+value)
}

// TempPath returns name resolved inside the scenario's temp directory.
func (testCtx *TestContext) TempPath(name string) string {
	return filepath.Join(testCtx.TempDir, name)
}

// resolvePath expands placeholders in a step argument and anchors relative
// paths at the module root.
func (testCtx *TestContext) resolvePath(name string) string {
	name = testCtx.substituteCommandVariables(name)
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.WorkingDir, name)
}

// substituteCommandVariables replaces {tmp} and {port} placeholders.
func (testCtx *TestContext) substituteCommandVariables(s string) string {
	return strings.NewReplacer(
		"{tmp}", testCtx.TempDir,
		"{port}", strconv.Itoa(testCtx.ServerPort),
	).Replace(s)
}
