package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"nomnom-api/backend/internal/auth"
	apperrors "nomnom-api/backend/pkg/errors"
	"nomnom-api/backend/pkg/logger"
	"go.uber.org/zap"
)

// Options configures the HTTP surface.
type Options struct {
	GraphQLPath    string
	AllowedOrigins []string
	// Playground serves GraphiQL on GET GraphQLPath.
	Playground bool
	Release    bool
	Gatherer   prometheus.Gatherer
}

// Server serves the GraphQL endpoint and its operational routes.
type Server struct {
	router *gin.Engine
	schema *graphql.Schema
	opts   Options
	logger *zap.Logger
}

// New builds the router around an executable schema.
func New(schema *graphql.Schema, opts Options) *Server {
	if opts.GraphQLPath == "" {
		opts.GraphQLPath = "/api/graphql"
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router: gin.New(),
		schema: schema,
		opts:   opts,
		logger: logger.Get(),
	}
	s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Use(ginLogger(s.logger))
	s.router.Use(gin.Recovery())
	s.router.Use(cors(s.opts.AllowedOrigins))
	s.router.Use(auth.Binder())

	s.router.GET("/healthcheck", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))

	s.router.POST(s.opts.GraphQLPath, s.handleGraphQL)
	if s.opts.Playground {
		s.router.GET(s.opts.GraphQLPath, s.handlePlayground)
	}
}

type graphqlRequest struct {
	Query         string                 `json:"query" binding:"required"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

func (s *Server) handleGraphQL(c *gin.Context) {
	var req graphqlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.logger.Info("Request started", zap.String("operation", req.OperationName))
	resp := s.schema.Exec(c.Request.Context(), req.Query, req.OperationName, req.Variables)

	for _, qe := range resp.Errors {
		if qe.ResolverError == nil || apperrors.IsRequestScoped(qe.ResolverError) {
			continue
		}
		s.logger.Error("Request failed",
			zap.String("operation", req.OperationName),
			zap.String("path", fmt.Sprint(qe.Path)),
			zap.Error(qe.ResolverError),
			zap.NamedError("cause", errors.Unwrap(qe.ResolverError)),
		)
	}

	c.JSON(http.StatusOK, resp)
}

var playground = template.Must(template.New("graphiql").Parse(`<!DOCTYPE html>
<html>
<head>
  <title>NomNom GraphQL</title>
  <link rel="stylesheet" href="https://unpkg.com/graphiql@3/graphiql.min.css" />
</head>
<body style="margin: 0;">
  <div id="graphiql" style="height: 100vh;"></div>
  <script crossorigin src="https://unpkg.com/react@18/umd/react.production.min.js"></script>
  <script crossorigin src="https://unpkg.com/react-dom@18/umd/react-dom.production.min.js"></script>
  <script crossorigin src="https://unpkg.com/graphiql@3/graphiql.min.js"></script>
  <script>
    const fetcher = GraphiQL.createFetcher({ url: {{.}} });
    ReactDOM.createRoot(document.getElementById('graphiql')).render(React.createElement(GraphiQL, { fetcher }));
  </script>
</body>
</html>
`))

func (s *Server) handlePlayground(c *gin.Context) {
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := playground.Execute(c.Writer, s.opts.GraphQLPath); err != nil {
		s.logger.Error("Failed to render playground", zap.Error(err))
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server started", zap.String("addr", addr), zap.String("graphql_path", s.opts.GraphQLPath))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}
	s.logger.Info("Server exited")
	return nil
}
