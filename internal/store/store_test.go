package store

import (
	"testing"
	"time"
)

func TestCurrentPeriodStart(t *testing.T) {
	got := CurrentPeriodStart(time.Date(2026, 7, 31, 23, 59, 59, 0, time.UTC))
	want := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("CurrentPeriodStart = %v, want %v", got, want)
	}
}

func TestJSONMapRoundTrip(t *testing.T) {
	m := JSONMap{"token": "abc123", "chat_id": float64(42)}

	v, err := m.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}

	var out JSONMap
	if err := out.Scan(v); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if out["token"] != "abc123" {
		t.Errorf("token = %v, want abc123", out["token"])
	}
	if out["chat_id"] != float64(42) {
		t.Errorf("chat_id = %v, want 42", out["chat_id"])
	}
}

func TestJSONMapScanNil(t *testing.T) {
	var m JSONMap
	if err := m.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error: %v", err)
	}
	if m == nil {
		t.Error("Scan(nil) should leave a non-nil empty map")
	}
}

func TestGenerateTokenIsUniqueAndHex(t *testing.T) {
	a := generateToken()
	b := generateToken()
	if a == b {
		t.Error("generateToken produced the same value twice")
	}
	if len(a) != 64 {
		t.Errorf("generateToken length = %d, want 64 (32 bytes hex-encoded)", len(a))
	}
}
