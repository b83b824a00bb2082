package kalshi

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Signer produces the venue's RSA-PSS request signatures. The signed
// message is millisecond timestamp + METHOD + path (query string
// excluded), hashed with SHA-256 and salted to the digest length.
type Signer struct {
	keyID string
	key   *rsa.PrivateKey
}

// NewSigner builds a signer from the API key id and a PEM private key
// file (PKCS#8 or PKCS#1).
func NewSigner(keyID, privateKeyPath string) (*Signer, error) {
	if keyID == "" {
		return nil, fmt.Errorf("kalshi: api key id required")
	}
	key, err := loadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, err
	}
	return &Signer{keyID: keyID, key: key}, nil
}

// KeyID returns the API key id the signer authenticates as.
func (s *Signer) KeyID() string {
	return s.keyID
}

// Headers returns the three auth headers for one request.
func (s *Signer) Headers(method, path string, now time.Time) (map[string]string, error) {
	ts := now.UnixMilli()
	sig, err := s.sign(ts, method, path)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"KALSHI-ACCESS-KEY":       s.keyID,
		"KALSHI-ACCESS-TIMESTAMP": strconv.FormatInt(ts, 10),
		"KALSHI-ACCESS-SIGNATURE": sig,
	}, nil
}

func (s *Signer) sign(tsMillis int64, method, path string) (string, error) {
	msg := strconv.FormatInt(tsMillis, 10) + method + path
	hashed := sha256.Sum256([]byte(msg))

	sig, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, hashed[:],
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
	if err != nil {
		return "", fmt.Errorf("kalshi: sign request: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kalshi: read private key: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("kalshi: no PEM block in %q", path)
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("kalshi: key in %q is not RSA", path)
		}
		return rsaKey, nil
	}

	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("kalshi: parse private key: %w", err)
	}
	return rsaKey, nil
}
