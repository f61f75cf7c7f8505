package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"nomnom-api/backend/internal/auth"
	"nomnom-api/backend/pkg/config"
	"go.uber.org/zap"
)

func TestNewVerifier_SecretFallback(t *testing.T) {
	cfg := &config.Config{JWTSecret: "dev-secret"}

	v := newVerifier(cfg, zap.NewNop())

	_, ok := v.(*auth.SecretVerifier)
	assert.True(t, ok, "expected the shared secret verifier without JWKS_URL")
}

func TestNewVerifier_PrefersJWKS(t *testing.T) {
	cfg := &config.Config{
		JWKSURL:      "https://issuer.example.com/.well-known/jwks.json",
		JWKSCacheTTL: time.Minute,
		JWTIssuer:    "https://issuer.example.com/",
		JWTAudience:  "nomnom",
		JWTSecret:    "ignored",
	}

	v := newVerifier(cfg, zap.NewNop())

	_, ok := v.(*auth.JWKSVerifier)
	assert.True(t, ok, "expected the JWKS verifier when JWKS_URL is set")
}
