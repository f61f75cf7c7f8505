package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nomnom-api/backend/internal/auth"
	apperrors "nomnom-api/backend/pkg/errors"
	"nomnom-api/backend/pkg/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testSchema = `
schema { query: Query }
type Query {
  credential: String!
  forbidden: String
  broken: String
}
`

type testResolver struct{}

func (testResolver) Credential(ctx context.Context) string {
	return auth.CredentialFromContext(ctx).Raw
}

func (testResolver) Forbidden() (*string, error) {
	return nil, apperrors.NewForbidden("Recipe", "DELETE")
}

func (testResolver) Broken() (*string, error) {
	return nil, apperrors.NewUpstream("entity store", assert.AnError)
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	schema, err := graphql.ParseSchema(testSchema, &testResolver{})
	require.NoError(t, err)
	return New(schema, opts)
}

func post(s *Server, body string, header http.Header) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/graphql", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthcheck(t *testing.T) {
	s := newTestServer(t, Options{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthcheck", nil)
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestGraphQLInvalidRequest(t *testing.T) {
	s := newTestServer(t, Options{})

	for _, body := range []string{`{}`, `not json`} {
		w := post(s, body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestGraphQLCredentialReachesResolvers(t *testing.T) {
	s := newTestServer(t, Options{})

	w := post(s, `{"query":"{ credential }"}`, http.Header{"Authorization": {"Bearer abc.def"}})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct{ Credential string }
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Bearer abc.def", resp.Data.Credential)
}

func TestGraphQLErrorCodes(t *testing.T) {
	s := newTestServer(t, Options{})

	w := post(s, `{"query":"query Q { forbidden broken }","operationName":"Q"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Errors []struct {
			Message    string
			Path       []string
			Extensions map[string]interface{}
		}
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Errors, 2)

	codes := map[string]interface{}{}
	for _, e := range resp.Errors {
		codes[e.Path[0]] = e.Extensions["code"]
		assert.NotContains(t, e.Message, assert.AnError.Error())
	}
	assert.Equal(t, "FORBIDDEN", codes["forbidden"])
	assert.Equal(t, "INTERNAL_SERVER_ERROR", codes["broken"])
}

func TestGraphQLRequestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	previous := logger.Logger
	logger.Logger = zap.New(core)
	t.Cleanup(func() { logger.Logger = previous })

	s := newTestServer(t, Options{})
	w := post(s, `{"query":"query Q { forbidden broken }","operationName":"Q"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	started := logs.FilterMessage("Request started").All()
	require.Len(t, started, 1)
	assert.Equal(t, zapcore.InfoLevel, started[0].Level)
	assert.Equal(t, "Q", started[0].ContextMap()["operation"])

	// Only the upstream failure is logged; the authorization error is the caller's.
	failed := logs.FilterMessage("Request failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
	assert.Equal(t, "[broken]", failed[0].ContextMap()["path"])
}

func TestCORS(t *testing.T) {
	t.Run("wildcard preflight", func(t *testing.T) {
		s := newTestServer(t, Options{})
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodOptions, "/api/graphql", nil)
		req.Header.Set("Origin", "https://app.example.com")
		s.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("configured origins", func(t *testing.T) {
		s := newTestServer(t, Options{AllowedOrigins: []string{"https://app.example.com"}})

		w := post(s, `{"query":"{ credential }"}`, http.Header{"Origin": {"https://app.example.com"}})
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

		w = post(s, `{"query":"{ credential }"}`, http.Header{"Origin": {"https://evil.example.com"}})
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestPlayground(t *testing.T) {
	get := func(s *Server) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/graphql", nil)
		s.Handler().ServeHTTP(w, req)
		return w
	}

	w := get(newTestServer(t, Options{Playground: true}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "graphiql")

	w = get(newTestServer(t, Options{}))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "nomnom_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	s := newTestServer(t, Options{Gatherer: reg})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "nomnom_test_total 1")
}
