package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOfUnwrapsChain(t *testing.T) {
	base := New(KindNoAudioData, "no audio payload in response")
	wrapped := fmt.Errorf("narration failed: %w", base)

	kind, ok := KindOf(wrapped)
	if !ok {
		t.Fatal("KindOf returned ok=false for wrapped AppError")
	}
	if kind != KindNoAudioData {
		t.Errorf("kind = %q, want %q", kind, KindNoAudioData)
	}
}

func TestKindOfPlainError(t *testing.T) {
	if _, ok := KindOf(errors.New("boom")); ok {
		t.Error("KindOf returned ok=true for plain error")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, KindRemoteService, "backend unreachable")

	if !errors.Is(err, cause) {
		t.Error("wrapped error does not match cause with errors.Is")
	}
	if !Is(err, KindRemoteService) {
		t.Error("Is(err, KindRemoteService) = false")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindRemoteService, http.StatusBadGateway},
		{KindMalformedResponse, http.StatusBadGateway},
		{KindNoAudioData, http.StatusBadGateway},
		{KindNoImageData, http.StatusBadGateway},
		{KindInvalidAudioData, http.StatusBadGateway},
		{KindInsufficientBalance, http.StatusPaymentRequired},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindConfig, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		if got := HTTPStatus(New(tc.kind, "x")); got != tc.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tc.kind, got, tc.want)
		}
	}

	if got := HTTPStatus(errors.New("plain")); got != http.StatusInternalServerError {
		t.Errorf("HTTPStatus(plain) = %d, want 500", got)
	}
}

func TestMessageHidesInternalDetails(t *testing.T) {
	if got := Message(errors.New("pq: connection reset")); got != "internal error" {
		t.Errorf("Message(plain) = %q, want generic message", got)
	}
	if got := Message(New(KindValidation, "question or image is required")); got != "question or image is required" {
		t.Errorf("Message(AppError) = %q", got)
	}
}
