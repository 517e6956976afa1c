package util_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
)

func TestErrorCodesAndStatuses(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{apperrors.NewNotFound("ticket", nil), "NOT_FOUND", http.StatusNotFound},
		{apperrors.NewForbidden("nope"), "FORBIDDEN", http.StatusForbidden},
		{apperrors.NewRateLimited("slow down"), "RATE_LIMITED", http.StatusTooManyRequests},
		{apperrors.NewAlreadyInState("done", nil), "ALREADY_IN_STATE", http.StatusConflict},
		{apperrors.NewResourceExhausted("full", nil), "RESOURCE_EXHAUSTED", http.StatusInsufficientStorage},
		{apperrors.NewValidationError("bad", nil), "VALIDATION_FAILED", http.StatusBadRequest},
		{apperrors.NewUnauthorized("who"), "UNAUTHORIZED", http.StatusUnauthorized},
		{apperrors.NewInternalError(errors.New("boom")), "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if !apperrors.IsCode(tc.err, tc.code) {
			t.Fatalf("%v does not carry code %s", tc.err, tc.code)
		}
		if got := apperrors.ToDomainError(tc.err).HTTPStatus; got != tc.status {
			t.Fatalf("%s: status = %d, want %d", tc.code, got, tc.status)
		}
	}
}

func TestIsCodeSeesThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("creating ticket: %w", apperrors.NewRateLimited("platform"))
	if !apperrors.IsCode(wrapped, "RATE_LIMITED") {
		t.Fatalf("wrapped error lost its code: %v", wrapped)
	}
	if apperrors.IsCode(errors.New("plain"), "RATE_LIMITED") {
		t.Fatal("plain error matched a code")
	}
}

func TestToDomainErrorWrapsUnknown(t *testing.T) {
	cause := errors.New("pipe broke")
	domainErr := apperrors.ToDomainError(cause)
	if domainErr.Code != "INTERNAL_ERROR" {
		t.Fatalf("code = %s", domainErr.Code)
	}
	if !errors.Is(domainErr, cause) {
		t.Fatal("cause not wrapped")
	}
	if apperrors.ToDomainError(nil) != nil {
		t.Fatal("nil should map to nil")
	}
}

func TestResourceExhaustedPreservesCause(t *testing.T) {
	cause := errors.New("forbidden by platform")
	err := apperrors.NewResourceExhausted("cannot grow pool", cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause not reachable via errors.Is")
	}
}
