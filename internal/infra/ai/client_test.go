package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vietddude/rewriter/internal/core/apierror"
	"github.com/vietddude/rewriter/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		Endpoint: srv.URL,
		APIKey:   "test-key",
		Model:    "test-model",
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client, srv
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	if _, err := NewClient(Config{Endpoint: "https://example.com"}); err == nil {
		t.Error("expected error for missing API key")
	}
	if _, err := NewClient(Config{APIKey: "key"}); err == nil {
		t.Error("expected error for missing endpoint")
	}
}

func TestRewrite_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Prompt != "make it formal" {
			t.Errorf("Prompt = %q", req.Prompt)
		}
		json.NewEncoder(w).Encode(completionResponse{Text: "Good day."})
	})

	text, err := client.Rewrite(context.Background(), "make it formal", "hey there")
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if text != "Good day." {
		t.Errorf("text = %q, want %q", text, "Good day.")
	}
}

func TestRewrite_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		expect domain.ErrorCode
	}{
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusBadRequest, domain.ErrInvalidText},
		{http.StatusServiceUnavailable, domain.ErrAPIUnavailable},
		{http.StatusUnauthorized, domain.ErrAPIUnavailable},
		{http.StatusInternalServerError, domain.ErrAPIUnavailable},
	}

	for _, tt := range tests {
		status := tt.status
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})

		_, err := client.Rewrite(context.Background(), "prompt", "")
		if err == nil {
			t.Fatalf("status %d: expected error", status)
		}
		var aerr *apierror.Error
		if !errors.As(err, &aerr) {
			t.Fatalf("status %d: error is not an *apierror.Error: %v", status, err)
		}
		if aerr.Code != tt.expect {
			t.Errorf("status %d: code = %v, want %v", status, aerr.Code, tt.expect)
		}
	}
}

func TestRewrite_TransportErrorClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close() // force connection refused

	client, err := NewClient(Config{Endpoint: endpoint, APIKey: "key"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	_, err = client.Rewrite(context.Background(), "prompt", "")
	if err == nil {
		t.Fatal("expected transport error")
	}
	var aerr *apierror.Error
	if !errors.As(err, &aerr) {
		t.Fatalf("error is not an *apierror.Error: %v", err)
	}
	if aerr.Code != domain.ErrAPIUnavailable {
		t.Errorf("code = %v, want API_UNAVAILABLE", aerr.Code)
	}
}
