package ledger

import "testing"

func TestParseField(t *testing.T) {
	cases := map[string]int64{
		"":      0,
		"0":     0,
		"42":    42,
		"bogus": 0,
		"-5":    -5,
	}
	for in, want := range cases {
		if got := parseField(in); got != want {
			t.Errorf("parseField(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestHashKeyIsStableAndScopedPerVps(t *testing.T) {
	a := mustUUID(t, "11111111-1111-1111-1111-111111111111")
	b := mustUUID(t, "22222222-2222-2222-2222-222222222222")
	if hashKey(a) == hashKey(b) {
		t.Error("hashKey should differ across vps ids")
	}
	if hashKey(a) != hashKey(a) {
		t.Error("hashKey should be stable for the same vps id")
	}
}
