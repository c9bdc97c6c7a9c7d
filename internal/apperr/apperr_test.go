package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"gorm.io/gorm"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{NotFound(), http.StatusNotFound},
		{BadRequest("x"), http.StatusBadRequest},
		{Unauthorized(), http.StatusUnauthorized},
		{Forbidden("x"), http.StatusForbidden},
		{LimitExceeded("x"), http.StatusForbidden},
		{Conflict("x"), http.StatusConflict},
		{Internal("x"), http.StatusInternalServerError},
		{Database(errors.New("boom")), http.StatusInternalServerError},
		{Database(gorm.ErrRecordNotFound), http.StatusNotFound},
		{Infra(errors.New("unreachable")), http.StatusBadGateway},
	}

	for _, c := range cases {
		if got := c.err.Status(); got != c.want {
			t.Errorf("%v.Status() = %d, want %d", c.err.Kind, got, c.want)
		}
	}
}

func TestWriteErrorBody(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, NotFound())

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["error"] != "not found" {
		t.Errorf("error body = %q, want %q", body["error"], "not found")
	}
}

func TestWrapDefaultsToInternal(t *testing.T) {
	wrapped := Wrap(errors.New("some plain error"))
	if wrapped.Kind != KindInternal {
		t.Errorf("Wrap(plain error).Kind = %v, want KindInternal", wrapped.Kind)
	}
}
