package forwardproxy

import (
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
)

func TestParseProxyAuth(t *testing.T) {
	agentID := uuid.New()
	valid := "Basic " + base64.StdEncoding.EncodeToString([]byte(agentID.String()+":secret-token"))

	creds, ok := parseProxyAuth(valid)
	if !ok {
		t.Fatal("expected a well-formed header to parse")
	}
	if creds.AgentID != agentID || creds.Token != "secret-token" {
		t.Errorf("parseProxyAuth = %+v, want agent=%s token=secret-token", creds, agentID)
	}
}

func TestParseProxyAuthRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"Bearer sometoken",
		"Basic not-base64!!!",
		"Basic " + base64.StdEncoding.EncodeToString([]byte("not-a-uuid:token")),
		"Basic " + base64.StdEncoding.EncodeToString([]byte("missing-colon")),
	}
	for _, header := range cases {
		if _, ok := parseProxyAuth(header); ok {
			t.Errorf("parseProxyAuth(%q) should have failed", header)
		}
	}
}
