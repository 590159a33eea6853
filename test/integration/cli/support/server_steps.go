package support

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"
)

var errServerNotRunning = errors.New("server is not running")

func (testCtx *TestContext) theServerIsRunning() error {
	return testCtx.startTestHTTPServer(0)
}

func (testCtx *TestContext) theServerIsRunningWithRateLimit(perMinute int) error {
	return testCtx.startTestHTTPServer(perMinute)
}

// makeHTTPRequest sends a request to the test server and records the reply.
func (testCtx *TestContext) makeHTTPRequest(method, endpoint, body string) error {
	if testCtx.HTTPTestServer == nil {
		return errServerNotRunning
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, testCtx.GetServerURL()+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := testCtx.HTTPTestServer.Client().Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	testCtx.LastOutput = string(data)
	testCtx.LastHTTPResponse = string(data)
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for key, values := range resp.Header {
		if len(values) > 0 {
			testCtx.LastHTTPHeaders[key] = values[0]
		}
	}
	return nil
}

func (testCtx *TestContext) iGET(endpoint string) error {
	return testCtx.makeHTTPRequest(http.MethodGet, endpoint, "")
}

func (testCtx *TestContext) iPOSTWithBody(endpoint string, body *godog.DocString) error {
	return testCtx.makeHTTPRequest(http.MethodPost, endpoint, body.Content)
}

func (testCtx *TestContext) iMakeAnOPTIONSRequestTo(endpoint string) error {
	return testCtx.makeHTTPRequest(http.MethodOptions, endpoint, "")
}

// iSendRequests fires n identical GET requests and keeps the last reply.
func (testCtx *TestContext) iSendRequests(n int, endpoint string) error {
	for range n {
		if err := testCtx.iGET(endpoint); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) theResponseStatusShouldBe(expected int) error {
	if testCtx.LastHTTPStatusCode != expected {
		return fmt.Errorf("expected status %d, got %d\nBody: %s",
			expected, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]
	if got != value {
		return fmt.Errorf("header %s = %q, want %q", name, got, value)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBeSet(name string) error {
	if testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)] == "" {
		return fmt.Errorf("header %s is not set", name)
	}
	return nil
}

// theErrorKindShouldBe checks the "kind" of an ErrorResponse body.
func (testCtx *TestContext) theErrorKindShouldBe(kind string) error {
	v, err := jsonPath(testCtx.LastHTTPResponse, "kind")
	if err != nil {
		return err
	}
	if v != kind {
		return fmt.Errorf("error kind = %v, want %s", v, kind)
	}
	return nil
}

func (testCtx *TestContext) theResponseAngleShouldBe(want float64) error {
	v, err := jsonPath(testCtx.LastHTTPResponse, "result.angle_degrees")
	if err != nil {
		return err
	}
	return approxEqual("angle", v, want)
}

func (testCtx *TestContext) iOpenASessionWebSocket() error {
	if testCtx.HTTPTestServer == nil {
		return errServerNotRunning
	}
	conn, resp, err := websocket.DefaultDialer.Dial(testCtx.sessionURL(), nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	testCtx.SessionConn = conn
	return nil
}

// iSendTheSessionMessage writes one message and waits for the reply.
func (testCtx *TestContext) iSendTheSessionMessage(msg *godog.DocString) error {
	conn := testCtx.SessionConn
	if conn == nil {
		return errors.New("no session WebSocket open")
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Content)); err != nil {
		return fmt.Errorf("websocket write failed: %w", err)
	}
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("websocket read failed: %w", err)
	}
	testCtx.LastHTTPResponse = string(data)
	testCtx.LastSessionReply = nil
	return json.Unmarshal(data, &testCtx.LastSessionReply)
}

func (testCtx *TestContext) theSessionReplyTypeShouldBe(want string) error {
	if got := testCtx.LastSessionReply["type"]; got != want {
		return fmt.Errorf("session reply type = %v, want %s\nReply: %s", got, want, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theSessionAngleShouldBe(want float64) error {
	v, err := jsonPath(testCtx.LastHTTPResponse, "outcome.result.angle_degrees")
	if err != nil {
		return err
	}
	return approxEqual("session angle", v, want)
}

func (testCtx *TestContext) theSessionShouldHaveNoAngle() error {
	v, err := jsonPath(testCtx.LastHTTPResponse, "outcome.result")
	if err != nil {
		return err
	}
	if v != nil {
		return fmt.Errorf("session unexpectedly has a result: %v", v)
	}
	return nil
}

// RegisterServerSteps registers HTTP and WebSocket step definitions.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the server is running$`, testCtx.theServerIsRunning)
	sc.Step(`^the server is running with a limit of (\d+) requests per minute$`, testCtx.theServerIsRunningWithRateLimit)

	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I POST to "([^"]*)" with:$`, testCtx.iPOSTWithBody)
	sc.Step(`^I make an OPTIONS request to "([^"]*)"$`, testCtx.iMakeAnOPTIONSRequestTo)
	sc.Step(`^I send (\d+) GET requests to "([^"]*)"$`, testCtx.iSendRequests)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response header "([^"]*)" should be set$`, testCtx.theResponseHeaderShouldBeSet)
	sc.Step(`^the error kind should be "([^"]*)"$`, testCtx.theErrorKindShouldBe)
	sc.Step(`^the response angle should be (-?[\d.]+) degrees$`, testCtx.theResponseAngleShouldBe)

	sc.Step(`^I open a session WebSocket$`, testCtx.iOpenASessionWebSocket)
	sc.Step(`^I send the session message:$`, testCtx.iSendTheSessionMessage)
	sc.Step(`^the session reply type should be "([^"]*)"$`, testCtx.theSessionReplyTypeShouldBe)
	sc.Step(`^the session angle should be (-?[\d.]+) degrees$`, testCtx.theSessionAngleShouldBe)
	sc.Step(`^the session should have no angle$`, testCtx.theSessionShouldHaveNoAngle)
}
