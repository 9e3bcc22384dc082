package support

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cucumber/godog"
	"github.com/spf13/pflag"
)

const (
	serverReadyTimeout = 10 * time.Second
	serverExitTimeout  = 15 * time.Second
)

// serverProcess is a `barcodekit serve` child. Wait runs exactly once in
// the background; exited closes when it returns.
type serverProcess struct {
	cmd    *exec.Cmd
	logs   *syncBuffer
	exited chan struct{}
	err    error
}

// syncBuffer collects child stderr while steps read it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startServerProcess(dir string, env []string, args []string) (*serverProcess, error) {
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	p := &serverProcess{logs: &syncBuffer{}, exited: make(chan struct{})}
	p.cmd = exec.Command(resolveBinary(args[0]), args[1:]...) //nolint:gosec // G204: scenario command
	p.cmd.Dir = dir
	p.cmd.Env = append(os.Environ(), env...)
	p.cmd.Stderr = p.logs
	if err := p.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start server: %w", err)
	}
	go func() {
		err := p.cmd.Wait()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			err = fmt.Errorf("server exited with %s", exitErr.ProcessState)
		}
		p.err = err
		close(p.exited)
	}()
	return p, nil
}

// stop sends sig and waits up to timeout, killing the process afterwards.
func (p *serverProcess) stop(sig os.Signal, timeout time.Duration) error {
	select {
	case <-p.exited:
		return p.err
	default:
	}
	if err := p.cmd.Process.Signal(sig); err != nil {
		_ = p.cmd.Process.Kill()
	}
	select {
	case <-p.exited:
		return p.err
	case <-time.After(timeout):
		_ = p.cmd.Process.Kill()
		<-p.exited
		return fmt.Errorf("server did not exit within %s after %s", timeout, sig)
	}
}

// serveAddress reads --host and --port from a serve command line. Other
// flags are ignored.
func serveAddress(args []string, defaultPort int) (string, int, error) {
	var picked []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--host" || a == "--port" || a == "-p":
			picked = append(picked, a)
			if i+1 < len(args) {
				picked = append(picked, args[i+1])
				i++
			}
		case strings.HasPrefix(a, "--host=") || strings.HasPrefix(a, "--port="):
			picked = append(picked, a)
		}
	}

	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	host := fs.String("host", "localhost", "")
	port := fs.IntP("port", "p", defaultPort, "")
	if err := fs.Parse(picked); err != nil {
		return "", 0, fmt.Errorf("invalid serve command: %w", err)
	}
	if *host == "" || *host == "0.0.0.0" {
		*host = "localhost"
	}
	return *host, *port, nil
}

// StartServer starts the serve command as a child process and waits for
// /health.
func (testCtx *TestContext) StartServer(command string) error {
	args, err := splitCommand(testCtx.substituteCommandVariables(command))
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return errors.New("empty command")
	}

	defaultPort := testCtx.ServerPort
	if defaultPort == 0 {
		defaultPort = 8080
	}
	host, port, err := serveAddress(args[1:], defaultPort)
	if err != nil {
		return err
	}
	testCtx.ServerHost, testCtx.ServerPort = host, port

	if portInUse(host, port) {
		return fmt.Errorf("port %d is already in use", port)
	}

	proc, err := startServerProcess(testCtx.WorkingDir, testCtx.EnvVars, args)
	if err != nil {
		return err
	}
	testCtx.ServerProcess = proc

	if err := testCtx.waitForServerReady(); err != nil {
		_ = testCtx.StopServerProcess()
		return fmt.Errorf("server failed to start: %w\n%s", err, proc.logs.String())
	}
	return nil
}

// StopServerProcess stops the serve child, if any.
func (testCtx *TestContext) StopServerProcess() error {
	if testCtx.ServerProcess == nil {
		return nil
	}
	err := testCtx.ServerProcess.stop(syscall.SIGTERM, serverExitTimeout)
	testCtx.ServerProcess = nil
	return err
}

func portInUse(host string, port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// freePort asks the kernel for an unused TCP port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func (testCtx *TestContext) waitForServerReady() error {
	deadline := time.Now().Add(serverReadyTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-testCtx.ServerProcess.exited:
			return fmt.Errorf("server exited early: %v", testCtx.ServerProcess.err)
		default:
		}
		if testCtx.isServerHealthy() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server not ready after %s", serverReadyTimeout)
}

func (testCtx *TestContext) isServerHealthy() bool {
	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get(testCtx.GetServerURL() + "/health")
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// GetServerURL returns the base URL for the running server.
func (testCtx *TestContext) GetServerURL() string {
	if testCtx.HTTPTestServer != nil && testCtx.HTTPTestServer.Server != nil {
		return testCtx.HTTPTestServer.Server.URL
	}
	return "http://" + net.JoinHostPort(testCtx.ServerHost, strconv.Itoa(testCtx.ServerPort))
}

// aFreePort picks the port that {port} expands to.
func (testCtx *TestContext) aFreePort() error {
	port, err := freePort()
	if err != nil {
		return fmt.Errorf("failed to find a free port: %w", err)
	}
	testCtx.ServerPort = port
	return nil
}

func (testCtx *TestContext) theServerShouldBeHealthy() error {
	if !testCtx.isServerHealthy() {
		return fmt.Errorf("server at %s is not healthy", testCtx.GetServerURL())
	}
	return nil
}

// iSendSIGTERMToTheServer records the shutdown outcome in LastError.
func (testCtx *TestContext) iSendSIGTERMToTheServer() error {
	if testCtx.ServerProcess == nil {
		return errors.New("no server process running")
	}
	proc := testCtx.ServerProcess
	testCtx.LastError = testCtx.StopServerProcess()
	if testCtx.LastError != nil {
		testCtx.LastOutput = proc.logs.String()
	}
	return nil
}

func (testCtx *TestContext) theServerShouldHaveExitedCleanly() error {
	if testCtx.ServerProcess != nil {
		return errors.New("server is still running")
	}
	if testCtx.LastError != nil {
		return fmt.Errorf("server shutdown failed: %w\n%s", testCtx.LastError, testCtx.LastOutput)
	}
	if portInUse(testCtx.ServerHost, testCtx.ServerPort) {
		return fmt.Errorf("port %d is still in use", testCtx.ServerPort)
	}
	return nil
}

// RegisterServerProcessSteps registers steps for the serve command.
func (testCtx *TestContext) RegisterServerProcessSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a free port$`, testCtx.aFreePort)
	sc.Step(`^I start the server with "([^"]*)"$`, testCtx.StartServer)
	sc.Step(`^the server should be healthy$`, testCtx.theServerShouldBeHealthy)
	sc.Step(`^I send SIGTERM to the server$`, testCtx.iSendSIGTERMToTheServer)
	sc.Step(`^the server should have exited cleanly$`, testCtx.theServerShouldHaveExitedCleanly)
}
