package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusCmd_PrintsJSONStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/status" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statusResponse{
			Version:      "9.9.9",
			Backends:     []string{"http://backend-a"},
			CacheEntries: 3,
			CacheBytes:   4096,
		})
	}))
	defer srv.Close()

	origURL, origFmt := flagURL, flagFmt
	flagURL, flagFmt = srv.URL, "json"
	defer func() { flagURL, flagFmt = origURL, origFmt }()

	cmd := newStatusCmd()
	got := captureStdout(t, func() { cmd.Run(cmd, nil) })

	var out statusResponse
	if err := json.Unmarshal([]byte(got), &out); err != nil {
		t.Fatalf("expected JSON output: %v\noutput: %s", err, got)
	}
	if out.Version != "9.9.9" || out.CacheEntries != 3 {
		t.Errorf("unexpected status payload: %+v", out)
	}
}
