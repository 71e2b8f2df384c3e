package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/ashureev/salesdrill/internal/llm/llmtest"
)

func TestSessionLifecycleOverHTTP(t *testing.T) {
	model := llmtest.New()
	mgr := newTestManager(t, model)
	srv := newTestServer(t, mgr)

	var start startResponse
	if code := post(t, srv, "/api/session/start", startRequest{LLMChoice: "openai"}, &start); code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d", code)
	}
	if start.SessionID == "" || start.CurrentStage != 1 || start.StageDescription != "wary" {
		t.Fatalf("unexpected start response: %+v", start)
	}
	if start.CharacterInfo["income"] != "Medium" || start.CharacterInfo["age"] != float64(41) {
		t.Fatalf("character_info should carry the persona attributes: %v", start.CharacterInfo)
	}

	model.Push(llmtest.Text("seems friendly"), llmtest.Text("Hello there."), llmtest.Text("PASS"))
	var chat chatResponse
	code := post(t, srv, "/api/session/chat", chatRequest{SessionID: start.SessionID, UserInput: "Hi, I'm Minh."}, &chat)
	if code != http.StatusOK {
		t.Fatalf("chat: expected 200, got %d", code)
	}
	if chat.ResponseText != "Hello there." || chat.InnerActivity != "seems friendly" || !chat.IsPass || chat.CurrentStage != 2 || chat.Finished {
		t.Fatalf("unexpected chat response: %+v", chat)
	}
	if !strings.Contains(chat.Conversation, "Hi, I'm Minh.") {
		t.Fatalf("conversation missing turn: %q", chat.Conversation)
	}

	resp, err := http.Get(srv.URL + "/api/session/" + start.SessionID)
	if err != nil {
		t.Fatalf("GET snapshot: %v", err)
	}
	var snap snapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	resp.Body.Close()
	if len(snap.History) != 1 || snap.CurrentStage != 2 || snap.Vendor != "openai" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	var ended map[string]string
	if code := post(t, srv, "/end", endRequest{SessionID: start.SessionID}, &ended); code != http.StatusOK {
		t.Fatalf("legacy end: expected 200, got %d", code)
	}
	if ended["detail"] != "Session ended successfully." {
		t.Fatalf("unexpected end detail %q", ended["detail"])
	}
	if code := post(t, srv, "/api/session/end", endRequest{SessionID: start.SessionID}, nil); code != http.StatusNotFound {
		t.Fatalf("second end: expected 404, got %d", code)
	}
	if code := post(t, srv, "/chat", chatRequest{SessionID: start.SessionID, UserInput: "still there?"}, nil); code != http.StatusNotFound {
		t.Fatalf("chat after end: expected 404, got %d", code)
	}
}

func TestStartErrorsOverHTTP(t *testing.T) {
	model := llmtest.New(llmtest.Text("unused"))
	srv := newTestServer(t, newTestManager(t, model))

	var body map[string]string
	if code := post(t, srv, "/start", startRequest{LLMChoice: "llama"}, &body); code != http.StatusBadRequest {
		t.Fatalf("unknown vendor: expected 400, got %d", code)
	}
	if !strings.Contains(body["error"], "llama") {
		t.Fatalf("error should name the vendor: %q", body["error"])
	}
	if code := post(t, srv, "/start", startRequest{LLMChoice: "gemini"}, nil); code != http.StatusBadRequest {
		t.Fatalf("unconfigured vendor: expected 400, got %d", code)
	}
	if model.Calls() != 0 {
		t.Fatal("rejected starts must not call the model")
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, newTestManager(t, llmtest.New()))
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestChatRateLimitedThroughRouter(t *testing.T) {
	model := llmtest.New()
	mgr := newTestManager(t, model)
	srv := newLimitedTestServer(t, mgr, NewTurnLimiter(0.001, 1))

	var start startResponse
	if code := post(t, srv, "/api/session/start", startRequest{LLMChoice: "openai"}, &start); code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d", code)
	}
	model.Push(
		llmtest.Text("curious"), llmtest.Text("Hello."), llmtest.Text("FAIL"),
		llmtest.Text("curious"), llmtest.Text("Hello again."), llmtest.Text("FAIL"),
	)
	chat := chatRequest{SessionID: start.SessionID, UserInput: "hi"}

	// Requests without a cookie get a new operator each time; they share
	// the caller's IP bucket.
	codes := make([]int, 0, 5)
	for range 5 {
		codes = append(codes, post(t, srv, "/api/session/chat", chat, nil))
	}
	want := []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("cookieless chats: expected %v, got %v", want, codes)
		}
	}
	if got := model.Calls(); got != 3 {
		t.Fatalf("expected one turn to reach the model, got %d calls", got)
	}

	// A client presenting its operator id has its own bucket.
	const operator = "op_0123456789abcdef0123456789abcdef"
	if code := postAs(t, srv, operator, "/api/session/chat", chat); code != http.StatusOK {
		t.Fatalf("identified chat: expected 200, got %d", code)
	}
	if code := postAs(t, srv, operator, "/api/session/chat", chat); code != http.StatusTooManyRequests {
		t.Fatalf("identified chat: expected 429, got %d", code)
	}
}
