/*
 * Copyright 2025 Quay Labs, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package natsutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaylabs/peripheral/pkg/models"
)

// writeSelfSignedPair generates a throwaway self-signed certificate so the
// CA parsing path can be exercised in isolation.
func writeSelfSignedPair(t *testing.T, certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"Quay Labs Test"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o600))

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o600))
}

func TestTLSConfigRequiresMTLSMode(t *testing.T) {
	t.Parallel()

	_, err := TLSConfig(nil)
	assert.ErrorIs(t, err, ErrMTLSRequired)

	_, err = TLSConfig(&models.SecurityConfig{Mode: "none"})
	assert.ErrorIs(t, err, ErrMTLSRequired)
}

func TestTLSConfigMissingCertificates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	sec := &models.SecurityConfig{
		Mode: "mtls",
		TLS: models.TLSConfig{
			CertFile: filepath.Join(dir, "missing.pem"),
			KeyFile:  filepath.Join(dir, "missing-key.pem"),
			CAFile:   filepath.Join(dir, "missing-ca.pem"),
		},
	}

	_, err := TLSConfig(sec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client certificate")
}

func TestTLSConfigBadCA(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	caFile := filepath.Join(dir, "ca.pem")

	writeSelfSignedPair(t, certFile, keyFile)
	require.NoError(t, os.WriteFile(caFile, []byte("not a certificate"), 0o600))

	sec := &models.SecurityConfig{
		Mode: "mtls",
		TLS: models.TLSConfig{
			CertFile: certFile,
			KeyFile:  keyFile,
			CAFile:   caFile,
		},
	}

	_, err := TLSConfig(sec)
	assert.ErrorIs(t, err, ErrCAParsingFailed)
}

func TestCloudEventEnvelopeShape(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	ev := models.CapabilityEvent{
		EventID:    "ev-1",
		Capability: "sharing",
		Kind:       "transfer.completed",
		Timestamp:  now,
		Data:       models.Transfer{TransferID: "t-1"},
	}

	cloudEvent := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              ev.EventID,
		Source:          eventSource,
		Type:            eventTypePrefix + ev.Kind,
		DataContentType: dataContentsJSON,
		Subject:         subjectPrefix + ev.Capability + "." + ev.Kind,
		Time:            &ev.Timestamp,
		Data:            ev,
	}

	raw, err := json.Marshal(cloudEvent)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "1.0", decoded["specversion"])
	assert.Equal(t, "com.quaylabs.peripheral.transfer.completed", decoded["type"])
	assert.Equal(t, "events.capability.sharing.transfer.completed", decoded["subject"])
	assert.Equal(t, "ev-1", decoded["id"])
}
