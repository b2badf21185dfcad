package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/dealerdesk/dealerdesk-backend/pkg/errors"
	"github.com/dealerdesk/dealerdesk-backend/pkg/pagination"
)

func TestParseQueryInt(t *testing.T) {
	r := httptest.NewRequest("GET", "/?limit=25", nil)
	got, err := ParseQueryInt(r, "limit", 10, 1, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 25 {
		t.Fatalf("expected 25, got %d", got)
	}

	r = httptest.NewRequest("GET", "/", nil)
	got, err = ParseQueryInt(r, "limit", 10, 1, 100)
	if err != nil || got != 10 {
		t.Fatalf("expected default 10, got %d err=%v", got, err)
	}

	r = httptest.NewRequest("GET", "/?limit=abc", nil)
	if _, err := ParseQueryInt(r, "limit", 10, 1, 100); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for non-numeric value, got %v", err)
	}

	r = httptest.NewRequest("GET", "/?limit=500", nil)
	if _, err := ParseQueryInt(r, "limit", 10, 1, 100); err == nil {
		t.Fatal("expected out of range error")
	}
}

func TestParsePagination(t *testing.T) {
	r := httptest.NewRequest("GET", "/?limit=20&cursor=abc", nil)
	params, err := ParsePagination(r, pagination.DefaultLimit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Limit != 20 || params.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", params)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	type payload struct {
		Name string `json:"name" validate:"required"`
	}

	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"ok","bogus":true}`))
	var dest payload
	err := DecodeJSONBody(r, &dest)
	if pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyValidationDetails(t *testing.T) {
	type payload struct {
		Name  string `json:"name" validate:"required"`
		Email string `json:"email" validate:"required,email"`
	}

	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"nope"}`))
	var dest payload
	err := DecodeJSONBody(r, &dest)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	if details["name"] != "is required" {
		t.Fatalf("unexpected message for name: %q", details["name"])
	}
	if details["email"] != "must be a valid email" {
		t.Fatalf("unexpected message for email: %q", details["email"])
	}
}
