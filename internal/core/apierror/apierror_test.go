package apierror

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/vietddude/rewriter/internal/core/domain"
)

func TestCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		expect domain.ErrorCode
	}{
		{400, domain.ErrInvalidText},
		{401, domain.ErrAPIUnavailable},
		{403, domain.ErrAPIUnavailable},
		{405, domain.ErrMethodNotAllowed},
		{408, domain.ErrTimeout},
		{429, domain.ErrRateLimited},
		{500, domain.ErrAPIUnavailable},
		{503, domain.ErrAPIUnavailable},
		{418, domain.ErrInternal},
	}

	for _, tt := range tests {
		if got := CodeForStatus(tt.status); got != tt.expect {
			t.Errorf("CodeForStatus(%d) = %v, want %v", tt.status, got, tt.expect)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		expect domain.ErrorCode
	}{
		{errors.New("connection refused"), domain.ErrAPIUnavailable},
		{errors.New("connection reset by peer"), domain.ErrAPIUnavailable},
		{errors.New("no such host"), domain.ErrAPIUnavailable},
		{errors.New("request timed out"), domain.ErrTimeout},
		{context.DeadlineExceeded, domain.ErrTimeout},
		{errors.New("too many requests"), domain.ErrRateLimited},
		{errors.New("something exploded"), domain.ErrInternal},
		{New(domain.ErrRateLimited, nil), domain.ErrRateLimited},
		{fmt.Errorf("wrapped: %w", New(domain.ErrInvalidPrompt, nil)), domain.ErrInvalidPrompt},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.expect {
			t.Errorf("Classify(%q) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}

func TestRetryable(t *testing.T) {
	retryable := []domain.ErrorCode{
		domain.ErrTimeout, domain.ErrRateLimited, domain.ErrAPIUnavailable,
	}
	nonRetryable := []domain.ErrorCode{
		domain.ErrInvalidPrompt, domain.ErrInvalidText, domain.ErrInternal,
		domain.ErrMethodNotAllowed, domain.ErrQueueFull,
	}

	for _, code := range retryable {
		if !Retryable(code) {
			t.Errorf("Retryable(%s) = false, want true", code)
		}
	}
	for _, code := range nonRetryable {
		if Retryable(code) {
			t.Errorf("Retryable(%s) = true, want false", code)
		}
	}
}

func TestRetryableStatus429vs400(t *testing.T) {
	if code := CodeForStatus(429); !Retryable(code) {
		t.Errorf("status 429 classified as %s, want retryable", code)
	}
	if code := CodeForStatus(400); Retryable(code) {
		t.Errorf("status 400 classified as %s, want non-retryable", code)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in     string
		hidden string
	}{
		{`api_key=sk-secret-value failed`, "sk-secret-value"},
		{`authorization: Bearer abc123`, "abc123"},
		{`password: hunter2`, "hunter2"},
		{`token=deadbeef expired`, "deadbeef"},
	}

	for _, tt := range tests {
		got := Sanitize(tt.in)
		if strings.Contains(got, tt.hidden) {
			t.Errorf("Sanitize(%q) = %q, still contains %q", tt.in, got, tt.hidden)
		}
		if !strings.Contains(got, "[redacted]") {
			t.Errorf("Sanitize(%q) = %q, missing redaction marker", tt.in, got)
		}
	}
}

func TestNew_SanitizesRawError(t *testing.T) {
	raw := errors.New("call failed: api_key=sk-live-42")
	aerr := New(domain.ErrAPIUnavailable, raw)

	if strings.Contains(aerr.Error(), "sk-live-42") {
		t.Errorf("error string leaks credential: %q", aerr.Error())
	}
	if aerr.Status != 503 {
		t.Errorf("Status = %d, want 503", aerr.Status)
	}
	if aerr.Message == "" {
		t.Error("user message is empty")
	}
}

func TestFrom_Passthrough(t *testing.T) {
	orig := New(domain.ErrRateLimited, nil)
	if got := From(orig); got != orig {
		t.Error("From should pass *Error through unchanged")
	}

	converted := From(errors.New("connection refused"))
	if converted.Code != domain.ErrAPIUnavailable {
		t.Errorf("Code = %v, want API_UNAVAILABLE", converted.Code)
	}
}

func TestUnmappedCodeDefaultsToInternal(t *testing.T) {
	aerr := New(domain.ErrorCode("NOT_A_REAL_CODE"), nil)
	if aerr.Status != 500 {
		t.Errorf("Status = %d, want 500 (INTERNAL_ERROR defaults)", aerr.Status)
	}
}
