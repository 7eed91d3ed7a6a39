// Package app assembles the HTTP handler: the chi router, its middleware stack and the huma API
// carrying the registered operations.
package app

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/janisto/canvas-api/internal/http/routes"
	applog "github.com/janisto/canvas-api/internal/platform/logging"
	appmiddleware "github.com/janisto/canvas-api/internal/platform/middleware"
	"github.com/janisto/canvas-api/internal/platform/metrics"
	"github.com/janisto/canvas-api/internal/platform/respond"
)

const (
	// Title is the API title reported in the OpenAPI description.
	Title = "Canvas API"

	defaultMaxRequestBytes = 1 << 20
)

// Options configures New. The zero value is usable.
type Options struct {
	// Version is reported in the OpenAPI description.
	Version string
	// MaxRequestBytes caps request bodies; zero means 1 MiB.
	MaxRequestBytes int64
	// Metrics, when set, records request metrics for every request.
	Metrics *metrics.Collector
}

// App is the assembled HTTP surface.
type App struct {
	Router chi.Router
	API    huma.API
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.Router.ServeHTTP(w, r)
}

// New builds the router and registers all routes.
func New(opts Options) *App {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.MaxRequestBytes <= 0 {
		opts.MaxRequestBytes = defaultMaxRequestBytes
	}

	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())

	stack := []func(http.Handler) http.Handler{
		appmiddleware.Security(),
		appmiddleware.Vary(),
		appmiddleware.CORS(),
		appmiddleware.RequestID(),
		// RealIP trusts X-Real-IP / X-Forwarded-For; deploy behind a trusted proxy only.
		chimiddleware.RealIP,
		chimiddleware.RequestSize(opts.MaxRequestBytes),
		applog.RequestLogger(),
		applog.AccessLogger(),
	}
	if opts.Metrics != nil {
		stack = append(stack, opts.Metrics.Middleware())
	}
	stack = append(stack, respond.Recoverer())
	router.Use(stack...)

	api := humachi.New(router, APIConfig(opts.Version))
	routes.Register(api)

	return &App{Router: router, API: api}
}

// APIConfig returns the huma configuration for the API. Documentation, OpenAPI and schema
// routes are disabled so the registered operations are the only routes, and the schema link
// transformer is dropped so bodies contain exactly the declared fields.
func APIConfig(version string) huma.Config {
	cfg := huma.DefaultConfig(Title, version)
	cfg.OpenAPIPath = ""
	cfg.DocsPath = ""
	cfg.SchemasPath = ""
	cfg.CreateHooks = nil
	cfg.OnAddOperation = append(cfg.OnAddOperation, advertiseCBOR)
	return cfg
}

// advertiseCBOR mirrors every JSON request and response media type as CBOR in the OpenAPI
// description, matching what content negotiation actually serves.
func advertiseCBOR(_ *huma.OpenAPI, op *huma.Operation) {
	if op.RequestBody != nil && op.RequestBody.Content != nil {
		if jsonContent, ok := op.RequestBody.Content["application/json"]; ok {
			op.RequestBody.Content["application/cbor"] = jsonContent
		}
	}
	for _, resp := range op.Responses {
		if resp.Content == nil {
			continue
		}
		if jsonContent, ok := resp.Content["application/json"]; ok {
			resp.Content["application/cbor"] = jsonContent
		}
	}
}
