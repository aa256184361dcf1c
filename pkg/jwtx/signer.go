package jwtx

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(claims jwt.Claims) (string, error)
}

// NewSigner creates a signer for the given algorithm from PKCS8 PEM bytes.
// Supported algorithms: EdDSA (Ed25519) and ES256 (ECDSA P-256).
func NewSigner(alg, kid string, pemKey []byte) (Signer, error) {
	switch alg {
	case jwt.SigningMethodEdDSA.Alg():
		return newEdDSASigner(kid, pemKey)
	case jwt.SigningMethodES256.Alg():
		return newES256Signer(kid, pemKey)
	default:
		return nil, fmt.Errorf("jwtx: unsupported signing algorithm %q", alg)
	}
}

// NewEphemeralSigner generates a fresh keypair for the given algorithm. The
// key lives only for the process lifetime; meant for dev and tests.
func NewEphemeralSigner(alg, kid string) (Signer, error) {
	switch alg {
	case jwt.SigningMethodEdDSA.Alg():
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		return &eddsaSigner{kid: kid, key: priv}, nil
	case jwt.SigningMethodES256.Alg():
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, err
		}
		return &es256Signer{kid: kid, key: priv}, nil
	default:
		return nil, fmt.Errorf("jwtx: unsupported signing algorithm %q", alg)
	}
}

type eddsaSigner struct {
	kid string
	key ed25519.PrivateKey
}

func newEdDSASigner(kid string, pemKey []byte) (*eddsaSigner, error) {
	priv, err := parsePKCS8(pemKey)
	if err != nil {
		return nil, err
	}
	key, ok := priv.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not an Ed25519 private key")
	}
	return &eddsaSigner{kid: kid, key: key}, nil
}

func (s *eddsaSigner) Alg() string { return jwt.SigningMethodEdDSA.Alg() }
func (s *eddsaSigner) KID() string { return s.kid }

func (s *eddsaSigner) Sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

type es256Signer struct {
	kid string
	key *ecdsa.PrivateKey
}

func newES256Signer(kid string, pemKey []byte) (*es256Signer, error) {
	priv, err := parsePKCS8(pemKey)
	if err != nil {
		return nil, err
	}
	key, ok := priv.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not an ECDSA private key")
	}
	if key.Curve != elliptic.P256() {
		return nil, errors.New("jwtx: ES256 requires a P-256 key")
	}
	return &es256Signer{kid: kid, key: key}, nil
}

func (s *es256Signer) Alg() string { return jwt.SigningMethodES256.Alg() }
func (s *es256Signer) KID() string { return s.kid }

func (s *es256Signer) Sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

func parsePKCS8(pemKey []byte) (any, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM")
	}
	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("jwtx: expected PRIVATE KEY, got %q (keys must be PKCS8)", block.Type)
	}
	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
	}
	return priv, nil
}
