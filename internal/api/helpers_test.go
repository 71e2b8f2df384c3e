package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashureev/salesdrill/internal/domain"
	"github.com/ashureev/salesdrill/internal/identity"
	"github.com/ashureev/salesdrill/internal/llm"
	"github.com/ashureev/salesdrill/internal/llm/llmtest"
	"github.com/ashureev/salesdrill/internal/persona"
	"github.com/ashureev/salesdrill/internal/session"
)

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var raw []byte
	if s, ok := body.(string); ok {
		raw = []byte(s)
	} else {
		var err error
		if raw, err = json.Marshal(body); err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// newTestManager returns a manager whose OpenAI model replays model.
func newTestManager(t *testing.T, model *llmtest.Scripted) *session.Manager {
	t.Helper()
	stages, err := domain.NewStageSet([]domain.Stage{
		{ID: 1, Objective: "greet", CurrentState: "wary"},
		{ID: 2, Objective: "close sale", CurrentState: "interested"},
	})
	if err != nil {
		t.Fatalf("NewStageSet failed: %v", err)
	}
	src, err := persona.NewStaticSource([]domain.Persona{{"age": 41, "income": "Medium"}}, stages)
	if err != nil {
		t.Fatalf("NewStaticSource failed: %v", err)
	}
	mgr, err := session.NewManager(session.Config{
		Source: src,
		Models: func(v llm.Vendor) (llm.Model, error) {
			if v != llm.VendorOpenAI {
				return nil, fmt.Errorf("%s: %w", v, llm.ErrMissingAPIKey)
			}
			return model, nil
		},
		RawPersona: true,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return mgr
}

func newTestServer(t *testing.T, mgr *session.Manager) *httptest.Server {
	t.Helper()
	return newLimitedTestServer(t, mgr, nil)
}

func newLimitedTestServer(t *testing.T, mgr *session.Manager, limiter *TurnLimiter) *httptest.Server {
	t.Helper()
	router := NewRouter(RouterConfig{
		Sessions:       NewHandler(mgr, limiter, nil),
		WebSocket:      NewWebSocketHandler(mgr, limiter, nil, true, nil),
		Health:         NewHealthHandler(nil, mgr),
		AllowedOrigins: []string{"http://localhost:9000"},
		IsDev:          true,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path string, body any, out any) int {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return resp.StatusCode
}

// postAs posts body with the operator header set and returns the status.
func postAs(t *testing.T, srv *httptest.Server, operator, path string, body any) int {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(identity.OperatorHeaderName, operator)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}
