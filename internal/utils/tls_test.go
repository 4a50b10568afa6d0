package utils

import (
	"crypto/tls"
	"path/filepath"
	"testing"
)

func TestEnsureSelfSignedCertLoadable(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "certs", "server.crt")
	key := filepath.Join(dir, "certs", "server.key")
	if err := EnsureSelfSignedCert(cert, key, "citymap.local"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := tls.LoadX509KeyPair(cert, key); err != nil {
		t.Fatalf("load pair: %v", err)
	}
	// 已存在时不重新生成
	if err := EnsureSelfSignedCert(cert, key, "other"); err != nil {
		t.Fatalf("second call: %v", err)
	}
}
