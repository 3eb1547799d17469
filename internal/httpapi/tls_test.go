package httpapi

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeSelfSigned writes a throwaway cert and key pair under dir and returns
// their paths.
func writeSelfSigned(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "localhost"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(certPath, certPEM, 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return certPath, keyPath
}

func TestTLSConfigServerOnly(t *testing.T) {
	certPath, keyPath := writeSelfSigned(t, t.TempDir())
	cfg, err := TLSConfig(certPath, keyPath, "")
	if err != nil {
		t.Fatalf("TLSConfig: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatalf("certificates=%d", len(cfg.Certificates))
	}
	if cfg.ClientAuth != tls.NoClientCert {
		t.Fatalf("client auth=%v", cfg.ClientAuth)
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Fatalf("min version=%x", cfg.MinVersion)
	}
}

func TestTLSConfigMutual(t *testing.T) {
	certPath, keyPath := writeSelfSigned(t, t.TempDir())
	cfg, err := TLSConfig(certPath, keyPath, certPath)
	if err != nil {
		t.Fatalf("TLSConfig: %v", err)
	}
	if cfg.ClientAuth != tls.RequireAndVerifyClientCert {
		t.Fatalf("client auth=%v", cfg.ClientAuth)
	}
	if cfg.ClientCAs == nil {
		t.Fatal("expected client CA pool")
	}
}

func TestTLSConfigRequiresBothCertAndKey(t *testing.T) {
	certPath, keyPath := writeSelfSigned(t, t.TempDir())
	if _, err := TLSConfig(certPath, "", ""); err == nil || !strings.Contains(err.Error(), "both") {
		t.Fatalf("lone cert: err=%v", err)
	}
	if _, err := TLSConfig("", keyPath, ""); err == nil || !strings.Contains(err.Error(), "both") {
		t.Fatalf("lone key: err=%v", err)
	}
}

func TestTLSConfigMissingKeyPair(t *testing.T) {
	if _, err := TLSConfig("missing-cert.pem", "missing-key.pem", ""); err == nil {
		t.Fatal("expected error for missing key pair")
	}
}

func TestTLSConfigBadClientCA(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeSelfSigned(t, dir)
	empty := filepath.Join(dir, "empty.pem")
	if err := os.WriteFile(empty, []byte("not a cert"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := TLSConfig(certPath, keyPath, empty); err == nil {
		t.Fatal("expected error for client CA bundle without certificates")
	}
}
