package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/capture"
	"github.com/MeKo-Tech/barcodekit/internal/server"
	"github.com/MeKo-Tech/barcodekit/internal/testutil"
	"github.com/MeKo-Tech/barcodekit/internal/utils"
)

const scanMessageTimeout = 10 * time.Second

// HTTPTestServerWrapper wraps an in-process API server.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
}

// createTestHTTPServer starts the API on an httptest listener.
func (testCtx *TestContext) createTestHTTPServer(cfg server.Config) error {
	if testCtx.HTTPTestServer != nil {
		testCtx.stopTestHTTPServer()
	}
	if cfg.Capture.JoinTimeout == 0 {
		cfg.Capture = capture.DefaultConfig()
	}

	apiServer, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	mux := http.NewServeMux()
	apiServer.SetupRoutes(mux)

	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(mux),
		TestServer: apiServer,
	}
	return nil
}

// stopTestHTTPServer closes live sessions and the listener.
func (testCtx *TestContext) stopTestHTTPServer() {
	if testCtx.HTTPTestServer == nil {
		return
	}
	if testCtx.ScanSession != nil {
		testCtx.ScanSession.Close()
		testCtx.ScanSession = nil
	}
	_ = testCtx.HTTPTestServer.TestServer.Close()
	testCtx.HTTPTestServer.Server.Close()
	testCtx.HTTPTestServer = nil
}

func (testCtx *TestContext) serverURL() (string, error) {
	if testCtx.HTTPTestServer != nil {
		return testCtx.HTTPTestServer.Server.URL, nil
	}
	if testCtx.ServerProcess != nil {
		return testCtx.GetServerURL(), nil
	}
	return "", errors.New("no server is running")
}

// theAPIServerIsRunning starts the API with default settings.
func (testCtx *TestContext) theAPIServerIsRunning() error {
	return testCtx.createTestHTTPServer(server.Config{})
}

// theAPIServerIsRunningWithRateLimit starts the API with a per-minute limit.
func (testCtx *TestContext) theAPIServerIsRunningWithRateLimit(perMinute int) error {
	return testCtx.createTestHTTPServer(server.Config{
		RateLimit: server.RateLimitConfig{Enabled: true, RequestsPerMinute: perMinute},
	})
}

// theAPIServerIsRunningWithAutoRestart starts the API with sessions that
// resume scanning after each result.
func (testCtx *TestContext) theAPIServerIsRunningWithAutoRestart() error {
	cfg := capture.DefaultConfig()
	cfg.AutoRestart = true
	cfg.RestartDelay = 50 * time.Millisecond
	return testCtx.createTestHTTPServer(server.Config{Capture: cfg})
}

func (testCtx *TestContext) recordResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = body
	testCtx.LastHTTPHeaders = resp.Header
	return nil
}

// iSendAGETRequestTo issues a GET against the running server.
func (testCtx *TestContext) iSendAGETRequestTo(path string) error {
	base, err := testCtx.serverURL()
	if err != nil {
		return err
	}
	resp, err := http.Get(base + path) //nolint:gosec,noctx // G107: test server URL
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return testCtx.recordResponse(resp)
}

// iUploadTo posts a scenario file as the "image" multipart field.
func (testCtx *TestContext) iUploadTo(filename, path string) error {
	return testCtx.uploadWithFields(filename, path, nil)
}

// iUploadToWithFormats posts an image restricted to the given formats.
func (testCtx *TestContext) iUploadToWithFormats(filename, path, formats string) error {
	return testCtx.uploadWithFields(filename, path, map[string]string{"formats": formats})
}

func (testCtx *TestContext) uploadWithFields(filename, path string, fields map[string]string) error {
	base, err := testCtx.serverURL()
	if err != nil {
		return err
	}
	data, err := testCtx.readScenarioFile(filename)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	resp, err := http.Post(base+path, writer.FormDataContentType(), &body) //nolint:gosec,noctx // G107: test server URL
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	return testCtx.recordResponse(resp)
}

// theResponseStatusShouldBe checks the last HTTP status code.
func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("expected status %d, got %d\nBody: %s", code, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseShouldContain checks the last HTTP body.
func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(string(testCtx.LastHTTPResponse), text) {
		return fmt.Errorf("response does not contain %q\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseContentTypeShouldBe checks the Content-Type header.
func (testCtx *TestContext) theResponseContentTypeShouldBe(contentType string) error {
	got := testCtx.LastHTTPHeaders.Get("Content-Type")
	if !strings.HasPrefix(got, contentType) {
		return fmt.Errorf("expected content type %q, got %q", contentType, got)
	}
	return nil
}

// theResponseHeaderShouldBePresent checks a header exists.
func (testCtx *TestContext) theResponseHeaderShouldBePresent(name string) error {
	if testCtx.LastHTTPHeaders.Get(name) == "" {
		return fmt.Errorf("response header %q missing", name)
	}
	return nil
}

// theResponseImageShouldDecodeTo decodes a generated image response.
func (testCtx *TestContext) theResponseImageShouldDecodeTo(text string) error {
	img, _, err := utils.DecodeImage(bytes.NewReader(testCtx.LastHTTPResponse))
	if err != nil {
		return fmt.Errorf("response is not an image: %w", err)
	}
	res, err := testutil.DecodeFirst(img)
	if err != nil {
		return fmt.Errorf("response image did not decode: %w", err)
	}
	if res.Value != text {
		return fmt.Errorf("decoded %q, want %q", res.Value, text)
	}
	return nil
}

// theDecodedTextShouldBe checks the first result of a decode response.
func (testCtx *TestContext) theDecodedTextShouldBe(text string) error {
	var resp server.DecodeResponse
	if err := json.Unmarshal(testCtx.LastHTTPResponse, &resp); err != nil {
		return fmt.Errorf("response is not a decode result: %w", err)
	}
	if len(resp.Results) == 0 {
		return fmt.Errorf("no results in response: %s", testCtx.LastHTTPResponse)
	}
	if resp.Results[0].Text != text {
		return fmt.Errorf("decoded %q, want %q", resp.Results[0].Text, text)
	}
	return nil
}

// ScanClient is a live-scan WebSocket session.
type ScanClient struct {
	conn      *websocket.Conn
	SessionID string

	messages chan server.ScanMessage
	writeMu  sync.Mutex
	once     sync.Once
}

// DialScan opens a live-scan session and waits for the session message.
func DialScan(baseURL string) (*ScanClient, error) {
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws/scan"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil) //nolint:bodyclose // upgraded connection
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	c := &ScanClient{conn: conn, messages: make(chan server.ScanMessage, 32)}
	go c.readLoop()

	msg, err := c.Next(scanMessageTimeout)
	if err != nil {
		c.Close()
		return nil, err
	}
	if msg.Type != server.MessageSession {
		c.Close()
		return nil, fmt.Errorf("expected session message, got %q (%s)", msg.Type, msg.Error)
	}
	c.SessionID = msg.SessionID
	return c, nil
}

func (c *ScanClient) readLoop() {
	defer close(c.messages)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg server.ScanMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		c.messages <- msg
	}
}

// Next returns the next server message.
func (c *ScanClient) Next(timeout time.Duration) (server.ScanMessage, error) {
	select {
	case msg, ok := <-c.messages:
		if !ok {
			return server.ScanMessage{}, errors.New("scan session closed")
		}
		return msg, nil
	case <-time.After(timeout):
		return server.ScanMessage{}, fmt.Errorf("no scan message within %s", timeout)
	}
}

// SendFrame sends one encoded image frame.
func (c *ScanClient) SendFrame(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// SendControl sends a control message.
func (c *ScanClient) SendControl(ctl server.ScanControl) error {
	data, err := json.Marshal(ctl)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close ends the session.
func (c *ScanClient) Close() {
	c.once.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
}

// AwaitDecoded streams frame until a decoded message arrives. Frames that
// reach a busy worker are dropped, so the frame is resent periodically.
func (c *ScanClient) AwaitDecoded(frame []byte, timeout time.Duration) (server.ScanMessage, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if frame != nil {
			if err := c.SendFrame(frame); err != nil {
				return server.ScanMessage{}, err
			}
		}
		msg, err := c.Next(150 * time.Millisecond)
		if err != nil {
			if strings.Contains(err.Error(), "closed") {
				return server.ScanMessage{}, err
			}
			continue
		}
		switch msg.Type {
		case server.MessageDecoded:
			return msg, nil
		case server.MessageError:
			return msg, fmt.Errorf("scan error %s: %s", msg.ErrorType, msg.Error)
		}
	}
	return server.ScanMessage{}, fmt.Errorf("no decoded message within %s", timeout)
}

// iOpenALiveScanSession connects to /ws/scan.
func (testCtx *TestContext) iOpenALiveScanSession() error {
	base, err := testCtx.serverURL()
	if err != nil {
		return err
	}
	client, err := DialScan(base)
	if err != nil {
		return err
	}
	testCtx.ScanSession = client
	return nil
}

func (testCtx *TestContext) scanClient() (*ScanClient, error) {
	if testCtx.ScanSession == nil {
		return nil, errors.New("no live scan session")
	}
	return testCtx.ScanSession, nil
}

// theSessionShouldHaveAnID checks the session message carried an id.
func (testCtx *TestContext) theSessionShouldHaveAnID() error {
	c, err := testCtx.scanClient()
	if err != nil {
		return err
	}
	if c.SessionID == "" {
		return errors.New("session id is empty")
	}
	return nil
}

// iStreamUntilDecoded sends a scenario image until the session reports text.
func (testCtx *TestContext) iStreamUntilDecoded(filename, text string) error {
	c, err := testCtx.scanClient()
	if err != nil {
		return err
	}
	data, err := testCtx.readScenarioFile(filename)
	if err != nil {
		return err
	}
	msg, err := c.AwaitDecoded(data, scanMessageTimeout)
	if err != nil {
		return err
	}
	if msg.Result == nil || msg.Result.Text != text {
		return fmt.Errorf("decoded message %+v, want text %q", msg.Result, text)
	}
	if len(msg.Thumbnail) == 0 {
		return errors.New("decoded message has no thumbnail")
	}
	thumb, _, err := utils.DecodeImage(bytes.NewReader(msg.Thumbnail))
	if err != nil {
		return fmt.Errorf("thumbnail is not an image: %w", err)
	}
	if thumb.Bounds().Empty() {
		return errors.New("thumbnail is empty")
	}
	return nil
}

// iSendFramesOfAndExpectNoResult streams frames and expects no decoded message.
func (testCtx *TestContext) iSendFramesOfAndExpectNoResult(count int, filename string) error {
	c, err := testCtx.scanClient()
	if err != nil {
		return err
	}
	data, err := testCtx.readScenarioFile(filename)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		if err := c.SendFrame(data); err != nil {
			return err
		}
		msg, err := c.Next(100 * time.Millisecond)
		if err == nil && msg.Type == server.MessageDecoded {
			return fmt.Errorf("unexpected decoded message: %+v", msg.Result)
		}
	}
	return nil
}

// iRequestARestart asks the session to resume scanning.
func (testCtx *TestContext) iRequestARestart() error {
	c, err := testCtx.scanClient()
	if err != nil {
		return err
	}
	return c.SendControl(server.ScanControl{Type: "restart"})
}

// iToggleTheTorch sends a torch control and checks the reported state.
func (testCtx *TestContext) iToggleTheTorch(state string) error {
	c, err := testCtx.scanClient()
	if err != nil {
		return err
	}
	on := state == "on"
	if err := c.SendControl(server.ScanControl{Type: "torch", On: &on}); err != nil {
		return err
	}
	deadline := time.Now().Add(scanMessageTimeout)
	for time.Now().Before(deadline) {
		msg, err := c.Next(time.Until(deadline))
		if err != nil {
			return err
		}
		if msg.Type == server.MessageError {
			return fmt.Errorf("torch failed: %s", msg.Error)
		}
		if msg.Type == server.MessageTorch {
			if msg.Torch == nil || *msg.Torch != on {
				return fmt.Errorf("torch reported %v, want %v", msg.Torch, on)
			}
			return nil
		}
	}
	return errors.New("no torch message")
}

// iSendAnInvalidFrame sends bytes that are not an image.
func (testCtx *TestContext) iSendAnInvalidFrame() error {
	c, err := testCtx.scanClient()
	if err != nil {
		return err
	}
	return c.SendFrame([]byte("not an image"))
}

// iShouldReceiveAnErrorOfType waits for an error message.
func (testCtx *TestContext) iShouldReceiveAnErrorOfType(errorType string) error {
	c, err := testCtx.scanClient()
	if err != nil {
		return err
	}
	msg, err := c.Next(scanMessageTimeout)
	if err != nil {
		return err
	}
	if msg.Type != server.MessageError || msg.ErrorType != errorType {
		return fmt.Errorf("got %s/%s, want error/%s", msg.Type, msg.ErrorType, errorType)
	}
	return nil
}

// iCloseTheLiveScanSession stops the session from the client side.
func (testCtx *TestContext) iCloseTheLiveScanSession() error {
	c, err := testCtx.scanClient()
	if err != nil {
		return err
	}
	if err := c.SendControl(server.ScanControl{Type: "stop"}); err != nil {
		return err
	}
	// The server drops the connection after a stop.
	for {
		if _, err := c.Next(scanMessageTimeout); err != nil {
			if strings.Contains(err.Error(), "closed") {
				break
			}
			return err
		}
	}
	c.Close()
	testCtx.ScanSession = nil
	return nil
}

// theServerShouldHaveLiveSessions checks /health's session count.
func (testCtx *TestContext) theServerShouldHaveLiveSessions(count int) error {
	deadline := time.Now().Add(2 * time.Second)
	var last server.HealthResponse
	for {
		if err := testCtx.iSendAGETRequestTo("/health"); err != nil {
			return err
		}
		if err := json.Unmarshal(testCtx.LastHTTPResponse, &last); err != nil {
			return fmt.Errorf("invalid health response: %w", err)
		}
		if last.Sessions == count {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("server has %d live sessions, want %d", last.Sessions, count)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// theServerShouldListFormat checks /formats names a symbology.
func (testCtx *TestContext) theServerShouldListFormat(name string) error {
	var resp server.FormatsResponse
	if err := json.Unmarshal(testCtx.LastHTTPResponse, &resp); err != nil {
		return fmt.Errorf("invalid formats response: %w", err)
	}
	want, ok := barcode.ParseFormat(name)
	if !ok {
		return fmt.Errorf("unknown format %q", name)
	}
	for _, f := range resp.Formats {
		if f.Name == want.String() {
			return nil
		}
	}
	return fmt.Errorf("format %s not listed", name)
}

// RegisterServerSteps registers HTTP and live-scan steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the API server is running$`, testCtx.theAPIServerIsRunning)
	sc.Step(`^the API server is running with a limit of (\d+) requests per minute$`, testCtx.theAPIServerIsRunningWithRateLimit)
	sc.Step(`^the API server is running with automatic restart$`, testCtx.theAPIServerIsRunningWithAutoRestart)
	sc.Step(`^I send a GET request to "([^"]*)"$`, testCtx.iSendAGETRequestTo)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTo)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)" with formats "([^"]*)"$`, testCtx.iUploadToWithFormats)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response content type should be "([^"]*)"$`, testCtx.theResponseContentTypeShouldBe)
	sc.Step(`^the response header "([^"]*)" should be present$`, testCtx.theResponseHeaderShouldBePresent)
	sc.Step(`^the response image should decode to "([^"]*)"$`, testCtx.theResponseImageShouldDecodeTo)
	sc.Step(`^the decoded text should be "([^"]*)"$`, testCtx.theDecodedTextShouldBe)
	sc.Step(`^the server should list the "([^"]*)" format$`, testCtx.theServerShouldListFormat)
	sc.Step(`^the server should have (\d+) live sessions?$`, testCtx.theServerShouldHaveLiveSessions)

	sc.Step(`^I open a live scan session$`, testCtx.iOpenALiveScanSession)
	sc.Step(`^the session should have an id$`, testCtx.theSessionShouldHaveAnID)
	sc.Step(`^I stream "([^"]*)" until it decodes to "([^"]*)"$`, testCtx.iStreamUntilDecoded)
	sc.Step(`^I send (\d+) frames of "([^"]*)" and expect no result$`, testCtx.iSendFramesOfAndExpectNoResult)
	sc.Step(`^I request a restart$`, testCtx.iRequestARestart)
	sc.Step(`^I turn the torch (on|off)$`, testCtx.iToggleTheTorch)
	sc.Step(`^I send an invalid frame$`, testCtx.iSendAnInvalidFrame)
	sc.Step(`^I should receive an error of type "([^"]*)"$`, testCtx.iShouldReceiveAnErrorOfType)
	sc.Step(`^I close the live scan session$`, testCtx.iCloseTheLiveScanSession)
}
