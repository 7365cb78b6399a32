package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	domaincmd "mail-chat-bridge/internal/domain/command"
	ucmd "mail-chat-bridge/internal/usecase/command"
	"mail-chat-bridge/internal/usecase/notification"
)

type fakeReducer struct {
	err     error
	batches [][]notification.ChangeEvent
}

func (f *fakeReducer) Execute(_ context.Context, in *notification.ReduceInput) (*notification.ReduceOutput, error) {
	f.batches = append(f.batches, in.Events)
	if f.err != nil {
		return nil, f.err
	}
	return &notification.ReduceOutput{}, nil
}

type fakeDispatcher struct {
	err    error
	panic  bool
	inputs []ucmd.DispatchInput
}

func (f *fakeDispatcher) Execute(_ context.Context, in *ucmd.DispatchInput) (*ucmd.Outcome, error) {
	if f.panic {
		panic("boom")
	}
	f.inputs = append(f.inputs, *in)
	if f.err != nil {
		return nil, f.err
	}
	return &ucmd.Outcome{Delivered: true}, nil
}

func newTestApp(secret string) (*fiber.App, *fakeReducer, *fakeDispatcher) {
	r := &fakeReducer{}
	d := &fakeDispatcher{}
	return NewApp(NewGraphHandler(r), NewTelegramHandler(d, secret)), r, d
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, string) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	app, _, _ := newTestApp("")
	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	if status != http.StatusOK || body != "ok" {
		t.Fatalf("unexpected health response %d %q", status, body)
	}
}

func TestGraphValidationEcho(t *testing.T) {
	app, r, _ := newTestApp("")
	token := "Validation: Token+1/ğ"
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		req := httptest.NewRequest(method, "/graph/notifications?validationToken="+url.QueryEscape(token), nil)
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || string(b) != token {
			t.Fatalf("%s: expected token echo, got %d %q", method, resp.StatusCode, b)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
			t.Fatalf("%s: expected text/plain, got %q", method, ct)
		}
	}
	if len(r.batches) != 0 {
		t.Fatalf("handshake must not reach the reducer")
	}
}

func TestGraphGetWithoutToken(t *testing.T) {
	app, _, _ := newTestApp("")
	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/graph/notifications", nil))
	if status != http.StatusOK || body != GraphAckText {
		t.Fatalf("unexpected response %d %q", status, body)
	}
}

func TestGraphBatch(t *testing.T) {
	app, r, _ := newTestApp("")
	body := `{"value":[
		{"changeType":"created","resource":"Users/u/Messages/m1","resourceData":{"id":"m1"}},
		{"changeType":"created"},
		{"resourceData":{"id":"m3"}}
	]}`
	status, _ := do(t, app, postJSON("/graph/notifications", body))
	if status != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", status)
	}
	if len(r.batches) != 1 {
		t.Fatalf("expected one reduce call, got %d", len(r.batches))
	}
	got := r.batches[0]
	if len(got) != 3 || got[0].ResourceMessageID != "m1" || got[1].ResourceMessageID != "" || got[2].ResourceMessageID != "m3" {
		t.Fatalf("unexpected events: %+v", got)
	}
}

func TestGraphEmptyBodyIsEmptyBatch(t *testing.T) {
	app, r, _ := newTestApp("")
	status, _ := do(t, app, postJSON("/graph/notifications", ""))
	if status != http.StatusAccepted || len(r.batches) != 1 || len(r.batches[0]) != 0 {
		t.Fatalf("unexpected result %d %+v", status, r.batches)
	}
}

func TestGraphMalformedBatch(t *testing.T) {
	for _, body := range []string{`{bad json`, `{"value":{"id":"x"}}`, `{"value":[{"resourceData":"m1"}]}`} {
		app, r, _ := newTestApp("")
		status, _ := do(t, app, postJSON("/graph/notifications", body))
		if status != http.StatusInternalServerError {
			t.Fatalf("%s: expected 500, got %d", body, status)
		}
		if len(r.batches) != 0 {
			t.Fatalf("%s: malformed batch reached the reducer", body)
		}
	}
}

func TestGraphReducerError(t *testing.T) {
	app, r, _ := newTestApp("")
	r.err = errors.New("unexpected")
	status, _ := do(t, app, postJSON("/graph/notifications", `{"value":[]}`))
	if status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
}

func TestTelegramSecret(t *testing.T) {
	app, _, d := newTestApp("s3cret")
	update := `{"update_id":1,"message":{"message_id":5,"chat":{"id":42},"text":"/start"}}`

	status, _ := do(t, app, postJSON("/telegram/webhook", update))
	if status != http.StatusUnauthorized || len(d.inputs) != 0 {
		t.Fatalf("missing secret: status=%d dispatched=%d", status, len(d.inputs))
	}

	req := postJSON("/telegram/webhook", update)
	req.Header.Set(SecretHeader, "wrong")
	status, _ = do(t, app, req)
	if status != http.StatusUnauthorized || len(d.inputs) != 0 {
		t.Fatalf("wrong secret: status=%d dispatched=%d", status, len(d.inputs))
	}

	req = postJSON("/telegram/webhook", update)
	req.Header.Set(SecretHeader, "s3cret")
	status, _ = do(t, app, req)
	if status != http.StatusOK || len(d.inputs) != 1 {
		t.Fatalf("right secret: status=%d dispatched=%d", status, len(d.inputs))
	}
}

func TestTelegramDispatch(t *testing.T) {
	app, _, d := newTestApp("")
	status, _ := do(t, app, postJSON("/telegram/webhook",
		`{"update_id":7,"message":{"message_id":5,"chat":{"id":-100123},"text":"/taslak abc123 kısa ve nazik yanıt"}}`))
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(d.inputs) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(d.inputs))
	}
	in := d.inputs[0]
	want := domaincmd.Intent{Command: domaincmd.Draft, TargetID: "abc123", Argument: "kısa ve nazik yanıt"}
	if in.Intent != want || in.Origin != "-100123" {
		t.Fatalf("unexpected dispatch input: %+v", in)
	}
}

func TestTelegramEditedMessage(t *testing.T) {
	app, _, d := newTestApp("")
	status, _ := do(t, app, postJSON("/telegram/webhook",
		`{"update_id":8,"edited_message":{"message_id":5,"chat":{"id":42},"text":"/oku m1"}}`))
	if status != http.StatusOK || len(d.inputs) != 1 || d.inputs[0].Intent.Command != domaincmd.Read {
		t.Fatalf("edited message not dispatched: %d %+v", status, d.inputs)
	}
}

func TestTelegramNothingToDo(t *testing.T) {
	for _, body := range []string{
		`{"update_id":1}`,
		`{"update_id":1,"message":{"chat":{"id":42},"photo":[{}]}}`,
		`{"update_id":1,"message":{"chat":{"id":42},"text":"   "}}`,
	} {
		app, _, d := newTestApp("")
		status, _ := do(t, app, postJSON("/telegram/webhook", body))
		if status != http.StatusOK || len(d.inputs) != 0 {
			t.Fatalf("%s: status=%d dispatched=%d", body, status, len(d.inputs))
		}
	}
}

func TestTelegramWithoutChatUsesDefaultDestination(t *testing.T) {
	app, _, d := newTestApp("")
	do(t, app, postJSON("/telegram/webhook", `{"update_id":1,"message":{"text":"/start"}}`))
	if len(d.inputs) != 1 || d.inputs[0].Origin != "" {
		t.Fatalf("expected dispatch to default destination, got %+v", d.inputs)
	}
}

func TestTelegramErrors(t *testing.T) {
	app, _, d := newTestApp("")
	status, _ := do(t, app, postJSON("/telegram/webhook", `not json`))
	if status != http.StatusInternalServerError {
		t.Fatalf("malformed: expected 500, got %d", status)
	}

	d.err = errors.New("unexpected")
	status, _ = do(t, app, postJSON("/telegram/webhook", `{"message":{"chat":{"id":1},"text":"/start"}}`))
	if status != http.StatusInternalServerError {
		t.Fatalf("dispatch error: expected 500, got %d", status)
	}

	d.err = nil
	d.panic = true
	status, _ = do(t, app, postJSON("/telegram/webhook", `{"message":{"chat":{"id":1},"text":"/start"}}`))
	if status != http.StatusInternalServerError {
		t.Fatalf("panic: expected 500, got %d", status)
	}

	// the app keeps serving after a panic
	status, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	if status != http.StatusOK {
		t.Fatalf("expected app to keep serving, got %d", status)
	}
}

func TestRequestIDHeader(t *testing.T) {
	app, _, _ := newTestApp("")
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	resp2, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.Header.Get("X-Request-ID") != "abc" {
		t.Fatalf("expected incoming request id to be kept, got %q", resp2.Header.Get("X-Request-ID"))
	}
}
