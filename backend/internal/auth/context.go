package auth

import (
	"context"

	"github.com/gin-gonic/gin"
)

// HeaderName is the request header carrying the caller credential.
const HeaderName = "Authorization"

type ctxKey string

const credentialCtxKey = ctxKey("authorizationCredential")

// Credential is the raw, unverified caller credential of one request.
type Credential struct {
	Raw     string
	Present bool
}

// WithCredential returns a context carrying c.
func WithCredential(ctx context.Context, c Credential) context.Context {
	return context.WithValue(ctx, credentialCtxKey, c)
}

// CredentialFromContext returns the credential bound to ctx. A context that
// never passed through the binder yields an absent credential.
func CredentialFromContext(ctx context.Context) Credential {
	c, _ := ctx.Value(credentialCtxKey).(Credential)
	return c
}

// Binder copies the Authorization header, unmodified, into the request
// context. An empty header is treated as absent.
func Binder() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderName)
		cred := Credential{Raw: raw, Present: raw != ""}
		c.Request = c.Request.WithContext(WithCredential(c.Request.Context(), cred))
		c.Next()
	}
}
