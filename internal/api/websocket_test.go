package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/salesdrill/internal/llm/llmtest"
	"github.com/ashureev/salesdrill/internal/session"
)

func TestWebSocketTurns(t *testing.T) {
	model := llmtest.New()
	mgr := newTestManager(t, model)
	srv := newTestServer(t, mgr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start, err := mgr.Start(ctx, session.StartRequest{Vendor: "openai"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session/" + start.SessionID
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	exchange := func(msg wsMessage) map[string]any {
		t.Helper()
		data, _ := json.Marshal(msg)
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			t.Fatalf("write: %v", err)
		}
		_, reply, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var out map[string]any
		if err := json.Unmarshal(reply, &out); err != nil {
			t.Fatalf("decode reply: %v", err)
		}
		return out
	}

	if got := exchange(wsMessage{Type: "ping"}); got["type"] != "pong" {
		t.Fatalf("expected pong, got %v", got)
	}

	model.Push(llmtest.Text("curious"), llmtest.Text("Who is this?"), llmtest.Text("FAIL"))
	got := exchange(wsMessage{Type: "turn", Content: "Hello!"})
	if got["type"] != "turn" || got["response_text"] != "Who is this?" || got["is_pass"] != false {
		t.Fatalf("unexpected turn reply: %v", got)
	}

	model.Push(llmtest.Fail(context.DeadlineExceeded))
	got = exchange(wsMessage{Type: "turn", Content: "Are you there?"})
	if got["type"] != "error" || got["status"] != float64(http.StatusBadGateway) {
		t.Fatalf("expected generation error frame, got %v", got)
	}

	if got := exchange(wsMessage{Type: "resize"}); got["type"] != "error" {
		t.Fatalf("unknown type should be rejected, got %v", got)
	}

	snap, err := mgr.Get(start.SessionID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(snap.State.History) != 1 {
		t.Fatalf("failed turn must not be recorded, history=%d", len(snap.State.History))
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	srv := newTestServer(t, newTestManager(t, llmtest.New()))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session/missing"
	_, resp, err := websocket.Dial(ctx, url, nil)
	if err == nil {
		t.Fatal("expected dial to fail for unknown session")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 response, got %v", resp)
	}
}
