package geolocate

import (
	"net"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func TestOpenDisabled(t *testing.T) {
	l, err := Open("")
	if err != nil || l != nil {
		t.Fatalf("expected nil locator, got %v %v", l, err)
	}
	if _, ok := l.Locate(net.ParseIP("8.8.8.8")); ok {
		t.Fatalf("nil locator should never locate")
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close nil locator: %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.mmdb")); err == nil {
		t.Fatalf("expected error for missing database")
	}
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		header, value, remote, want string
	}{
		{"X-Forwarded-For", "203.0.113.7, 10.0.0.1", "10.0.0.2:1234", "203.0.113.7"},
		{"X-Real-IP", "198.51.100.4", "10.0.0.2:1234", "198.51.100.4"},
		{"Forwarded", `for="[2001:db8::1]";proto=https`, "10.0.0.2:1234", "2001:db8::1"},
		{"", "", "192.0.2.10:5555", "192.0.2.10"},
	}
	for _, c := range cases {
		r := httptest.NewRequest("GET", "/api/view", nil)
		r.RemoteAddr = c.remote
		if c.header != "" {
			r.Header.Set(c.header, c.value)
		}
		if got := ClientIP(r); !got.Equal(net.ParseIP(c.want)) {
			t.Fatalf("%s: expected %s, got %v", c.header, c.want, got)
		}
	}
}
