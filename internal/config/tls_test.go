package config

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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemporalTLS_Plaintext(t *testing.T) {
	tlsCfg, err := (&Config{}).TemporalTLS()
	require.NoError(t, err)
	assert.Nil(t, tlsCfg)
}

func TestTemporalTLS_UsesTemporalFields(t *testing.T) {
	pki := newTestPKI(t)

	cfg := &Config{
		TemporalTLSCert:       pki.cert,
		TemporalTLSKey:        pki.key,
		TemporalTLSCACert:     pki.ca,
		TemporalTLSServerName: "temporal.internal",
	}
	tlsCfg, err := cfg.TemporalTLS()
	require.NoError(t, err)
	require.NotNil(t, tlsCfg)
	assert.Len(t, tlsCfg.Certificates, 1)
	assert.NotNil(t, tlsCfg.RootCAs)
	assert.Equal(t, "temporal.internal", tlsCfg.ServerName)
	assert.Equal(t, uint16(tls.VersionTLS12), tlsCfg.MinVersion)
}

func TestTemporalTLS_Files(t *testing.T) {
	pki := newTestPKI(t)

	garbage := filepath.Join(t.TempDir(), "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not a cert"), 0o600))

	tests := []struct {
		name     string
		cert     string
		key      string
		ca       string
		wantErr  string
		wantPool bool
	}{
		{name: "cert and key only", cert: pki.cert, key: pki.key},
		{name: "with ca bundle", cert: pki.cert, key: pki.key, ca: pki.ca, wantPool: true},
		{name: "missing cert", cert: "/nonexistent/cert.pem", key: pki.key, wantErr: "load temporal client cert"},
		{name: "missing ca", cert: pki.cert, key: pki.key, ca: "/nonexistent/ca.pem", wantErr: "read temporal CA cert"},
		{name: "unparseable ca", cert: pki.cert, key: pki.key, ca: garbage, wantErr: "failed to parse temporal CA cert"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{TemporalTLSCert: tt.cert, TemporalTLSKey: tt.key, TemporalTLSCACert: tt.ca}
			tlsCfg, err := cfg.TemporalTLS()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, tlsCfg.Certificates, 1)
			assert.Equal(t, tt.wantPool, tlsCfg.RootCAs != nil)
			assert.Empty(t, tlsCfg.ServerName)
		})
	}
}

type testPKI struct {
	cert, key, ca string
}

// newTestPKI writes a throwaway CA plus a client certificate it signed.
func newTestPKI(t *testing.T) testPKI {
	t.Helper()
	dir := t.TempDir()
	now := time.Now()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "sandbox test ca"},
		NotBefore:             now,
		NotAfter:              now.Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	require.NoError(t, err)

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "sandbox-worker"},
		NotBefore:    now,
		NotAfter:     now.Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, caTmpl, &leafKey.PublicKey, caKey)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(leafKey)
	require.NoError(t, err)

	p := testPKI{
		cert: filepath.Join(dir, "cert.pem"),
		key:  filepath.Join(dir, "key.pem"),
		ca:   filepath.Join(dir, "ca.pem"),
	}
	writePEMFile(t, p.ca, "CERTIFICATE", caDER)
	writePEMFile(t, p.cert, "CERTIFICATE", leafDER)
	writePEMFile(t, p.key, "EC PRIVATE KEY", keyDER)
	return p
}

func writePEMFile(t *testing.T, path, blockType string, der []byte) {
	t.Helper()
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	require.NoError(t, os.WriteFile(path, data, 0o600))
}
