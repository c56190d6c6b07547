package shared

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestNewAPIError(t *testing.T) {
	e := NewAPIError("room_full", "room is at capacity")
	if e.Code != "room_full" {
		t.Errorf("expected code room_full, got %s", e.Code)
	}
	if e.Message != "room is at capacity" {
		t.Errorf("unexpected message: %s", e.Message)
	}
	if e.Details != nil {
		t.Error("details should be nil by default")
	}
}

func TestAPIError_WithDetails(t *testing.T) {
	e := NewAPIError("invalid_request", "bad body").WithDetails(map[string]string{"field": "user_id"})
	if e.Details == nil {
		t.Fatal("details should be set")
	}
}

func TestAPIError_ToHTTP(t *testing.T) {
	he := NewAPIError("not_found", "no such room").ToHTTP(http.StatusNotFound)
	if he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", he.Code)
	}
	apiErr, ok := he.Message.(*APIError)
	if !ok {
		t.Fatal("message should carry the APIError")
	}
	if apiErr.Code != "not_found" {
		t.Errorf("unexpected code: %s", apiErr.Code)
	}
}

func TestHTTPHelpers(t *testing.T) {
	tests := []struct {
		name   string
		he     *echo.HTTPError
		status int
	}{
		{"bad request", BadRequest("c", "m"), http.StatusBadRequest},
		{"not found", NotFound("c", "m"), http.StatusNotFound},
		{"conflict", Conflict("c", "m"), http.StatusConflict},
		{"internal", InternalError("c", "m"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.he.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, tt.he.Code)
			}
		})
	}
}
