package selector_test

import (
	"net/url"
	"testing"

	"github.com/coreproxy/edgeproxy/internal/selector"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parsing %q: %v", raw, err)
	}
	return u
}

func TestSelector_RoundRobinFairness(t *testing.T) {
	b0 := mustParse(t, "http://b0.internal")
	b1 := mustParse(t, "http://b1.internal")
	s := selector.New([]*url.URL{b0, b1})

	got := make([]string, 5)
	for i := range got {
		got[i] = s.Select().Host
	}

	want := []string{"b0.internal", "b1.internal", "b0.internal", "b1.internal", "b0.internal"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("request %d: got backend %q, want %q", i+1, got[i], want[i])
		}
	}
}

func TestSelector_LenZero(t *testing.T) {
	s := selector.New(nil)
	if s.Len() != 0 {
		t.Fatalf("expected empty pool, got len %d", s.Len())
	}
}
