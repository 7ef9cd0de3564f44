/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RequestLog: Structured access log via zap
  3. Instrument: Prometheus request counters (when metrics are enabled)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/buildings/*          Buildings
  /api/houses/*             Houses
  /api/tenants/*            Tenants (through the occupancy tracker)
  /api/bills/*              Utility bills (through the billing manager)
  /api/house-bills/*        Per-house payment toggles
  /api/arrears              Arrears report
  /api/state                Dashboard counters
  /api/service-providers/*  Maintenance contacts
  /api/service-records/*    Maintenance work orders
  /api/scenarios/*          Demo scenarios
  /api/admin/*              Admin operations
  /metrics                  Prometheus scrape endpoint
  /*                        Static files (frontend)

STATIC FILE SERVING:
  Serves a built frontend from web/dist/ when present, falling back to
  index.html for client-side routing.

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/warp/rental-ledger/metrics"
)

// DefaultCORSOrigins are the local frontend dev servers.
var DefaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	if len(corsOrigins) == 0 {
		corsOrigins = DefaultCORSOrigins
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLog(h.Logger))
	if h.Metrics != nil {
		r.Use(Instrument(h.Metrics))
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics.Handler())
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/buildings", func(r chi.Router) {
			r.Get("/", h.ListBuildings)
			r.Post("/", h.CreateBuilding)
			r.Get("/{id}", h.GetBuilding)
			r.Put("/{id}", h.UpdateBuilding)
			r.Delete("/{id}", h.DeleteBuilding)
			r.Get("/{id}/houses", h.ListBuildingHouses)
		})

		r.Route("/houses", func(r chi.Router) {
			r.Get("/", h.ListHouses)
			r.Post("/", h.CreateHouse)
			r.Get("/{id}", h.GetHouse)
			r.Put("/{id}", h.UpdateHouse)
			r.Delete("/{id}", h.DeleteHouse)
			r.Get("/{id}/tenants", h.ListHouseTenants)
			r.Get("/{id}/house-bills", h.ListHouseBills)
		})

		r.Route("/tenants", func(r chi.Router) {
			r.Get("/", h.ListTenants)
			r.Post("/", h.CreateTenant)
			r.Get("/{id}", h.GetTenant)
			r.Put("/{id}", h.UpdateTenant)
			r.Delete("/{id}", h.DeleteTenant)
			r.Post("/{id}/move-out", h.MoveOutTenant)
		})

		r.Route("/bills", func(r chi.Router) {
			r.Get("/", h.ListBills)
			r.Post("/", h.CreateBill)
			r.Get("/{id}", h.GetBill)
			r.Delete("/{id}", h.DeleteBill)
			r.Post("/{id}/pay", h.PayBill)
		})

		r.Route("/house-bills", func(r chi.Router) {
			r.Post("/{id}/pay", h.PayHouseBill)
			r.Post("/{id}/unpay", h.UnpayHouseBill)
		})

		r.Get("/arrears", h.GetArrears)
		r.Get("/state", h.GetState)

		r.Route("/service-providers", func(r chi.Router) {
			r.Get("/", h.ListServiceProviders)
			r.Post("/", h.CreateServiceProvider)
			r.Delete("/{id}", h.DeleteServiceProvider)
		})

		r.Route("/service-records", func(r chi.Router) {
			r.Get("/", h.ListServiceRecords)
			r.Post("/", h.CreateServiceRecord)
			r.Get("/{id}", h.GetServiceRecord)
			r.Put("/{id}", h.UpdateServiceRecord)
			r.Delete("/{id}", h.DeleteServiceRecord)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/reconcile-occupancy", h.ReconcileOccupancy)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	mountStatic(r)
	return r
}

// RequestLog writes one structured line per request.
func RequestLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// Instrument counts requests by chi route pattern, so /api/bills/7 and
// /api/bills/8 share one series.
func Instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			m.ObserveRequest(r.Method, route, ww.Status(), time.Since(start))
		})
	}
}

func mountStatic(r chi.Router) {
	// First try ./web/dist (development), then next to the executable
	staticDir := "./web/dist"
	if _, err := os.Stat(staticDir); os.IsNotExist(err) {
		exe, _ := os.Executable()
		staticDir = filepath.Join(filepath.Dir(exe), "web", "dist")
	}

	if _, err := os.Stat(staticDir); err == nil {
		fileServer := http.FileServer(http.Dir(staticDir))
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			fullPath := filepath.Join(staticDir, r.URL.Path)
			if _, err := os.Stat(fullPath); os.IsNotExist(err) {
				// SPA routing: serve index.html
				http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
				return
			}
			fileServer.ServeHTTP(w, r)
		})
		return
	}

	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Rental Ledger</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Rental Ledger API</h1>
<p>No frontend build found in web/dist.</p>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/buildings">/api/buildings</a> - Buildings</li>
<li><a href="/api/bills">/api/bills</a> - Utility bills</li>
<li><a href="/api/arrears">/api/arrears</a> - Arrears report</li>
<li><a href="/api/state">/api/state</a> - Dashboard counters</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Demo scenarios</li>
</ul>
</body>
</html>`))
	})
}
