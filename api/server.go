/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend
  5. Actor:      Builds the ledger.Actor from X-Actor-ID / X-Actor-Role and
                refuses writes by guests before the body is read

ROUTE GROUPS:
  /api/inventory/*      Inventory lots and allocation
  /api/distributions/*  Distribution entries
  /api/medicines        Pharmacy stock
  /api/recipients/*     Recipients and dispensing
  /api/dispensings/*    Dispensing edits and deletes
  /api/reports/*        Reports, checks, export
  /api/dashboard        Aggregates
  /health               Store reachability

SECURITY NOTE:
  The actor headers are trusted as sent. Authentication belongs in front of
  this service; the ledger only enforces that guests cannot write.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/stock-ledger/ledger"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// NewRouter creates a new router with all routes configured. An empty
// allowedOrigins allows any origin.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", HeaderActorID, HeaderActorRole},
		ExposedHeaders: []string{"Content-Disposition", "X-Report-ID"},
	}))
	r.Use(actorMiddleware)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", h.ListLots)
			r.Post("/", h.ReceiveLot)
			r.Get("/{id}", h.GetLot)
			r.Put("/{id}", h.AmendLot)
			r.Delete("/{id}", h.DeleteLot)
			r.Post("/{id}/distribute", h.Allocate)
		})

		r.Route("/distributions", func(r chi.Router) {
			r.Get("/", h.ListEntries)
			r.Get("/{id}", h.GetEntry)
			r.Delete("/{id}", h.DeleteEntry)
		})
		r.Get("/medicines", h.ListMedicines)

		r.Route("/recipients", func(r chi.Router) {
			r.Get("/", h.ListRecipients)
			r.Post("/", h.FindOrCreateRecipient)
			r.Post("/dispense", h.Dispense)
			r.Get("/{id}", h.GetRecipient)
			r.Post("/{id}/dispense", h.DispenseToRecipient)
		})

		r.Route("/dispensings", func(r chi.Router) {
			r.Get("/", h.ListDispensings)
			r.Get("/{id}", h.GetDispensing)
			r.Put("/{id}", h.EditDispensing)
			r.Delete("/{id}", h.DeleteDispensing)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/inventory", h.InventoryReport)
			r.Get("/inventory/check", h.CheckInventoryReport)
			r.Get("/distributions", h.DistributionReport)
			r.Get("/distributions/check", h.CheckDistributionReport)
			r.Get("/dispensings", h.DispensingReport)
			r.Get("/dispensings/check", h.CheckDispensingReport)
			r.Get("/months", h.AvailableMonths)
			r.Get("/history", h.ReportHistory)
		})
		r.Get("/dashboard", h.Dashboard)
	})

	return r
}

// =============================================================================
// ACTOR
// =============================================================================

type actorKey struct{}

// actorMiddleware attaches the calling actor to the request context. A
// missing or unknown role is a guest, and guests get 403 on any write.
func actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := ledger.Actor{
			ID:   strings.TrimSpace(r.Header.Get(HeaderActorID)),
			Role: ledger.RoleGuest,
		}
		if ledger.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderActorRole)))) == ledger.RoleAdmin {
			actor.Role = ledger.RoleAdmin
		}
		if isWrite(r.Method) && !actor.CanWrite() {
			writeError(w, http.StatusForbidden, "Forbidden", fmt.Errorf("%s may not %s %s", actor, r.Method, r.URL.Path))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func actorFrom(ctx context.Context) ledger.Actor {
	if a, ok := ctx.Value(actorKey{}).(ledger.Actor); ok {
		return a
	}
	return ledger.Actor{Role: ledger.RoleGuest}
}
