// Package auth signs and verifies API tokens and checks the admin password.
package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what a verified token grants.
type Claims struct {
	Subject string
	Admin   bool
}

// Signer issues and verifies ed25519-signed JWTs.
type Signer struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
	ttl     time.Duration
}

// NewSigner generates a fresh key pair. Tokens issued before a restart stop
// verifying. ttl of 0 issues tokens without expiry.
func NewSigner(ttl time.Duration) (*Signer, error) {
	public, private, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Signer{private: private, public: public, ttl: ttl}, nil
}

// LoadSigner reads a hex-encoded ed25519 seed from path.
func LoadSigner(path string, ttl time.Duration) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("key file %s must hold a %d-byte hex seed", path, ed25519.SeedSize)
	}
	private := ed25519.NewKeyFromSeed(seed)
	return &Signer{private: private, public: private.Public().(ed25519.PublicKey), ttl: ttl}, nil
}

// CreateJWT signs a token for sub.
func (s *Signer) CreateJWT(sub string, admin bool) (string, error) {
	claims := jwt.MapClaims{
		"sub":   sub,
		"admin": admin,
		"iat":   time.Now().Unix(),
	}
	if s.ttl > 0 {
		claims["exp"] = time.Now().Add(s.ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(s.private)
}

// AuthenticateJWT verifies a token and returns its claims.
func (s *Signer) AuthenticateJWT(tokenString string) (Claims, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.public, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return Claims{}, fmt.Errorf("invalid token")
	}

	mc, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("invalid jwt claims")
	}
	sub, ok := mc["sub"].(string)
	if !ok || sub == "" {
		return Claims{}, fmt.Errorf("missing sub in jwt")
	}
	admin, _ := mc["admin"].(bool)
	return Claims{Subject: sub, Admin: admin}, nil
}
