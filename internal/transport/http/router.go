// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// services, and encode; business rules never live here.
package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attesta/internal/audit"
	"attesta/internal/issuer"
	"attesta/internal/lifecycle"
	"attesta/internal/registry"
	"attesta/internal/roles"
	"attesta/internal/verifier"
	"attesta/pkg/platform/middleware/auth"
	"attesta/pkg/platform/middleware/metadata"
)

// Handler bundles the services the routes delegate to.
type Handler struct {
	registry  *registry.Service
	verifier  *verifier.Service
	roles     *roles.Service
	issuers   *issuer.Service
	lifecycle *lifecycle.Controller
	audits    audit.Store
	auditor   *audit.Publisher
}

func NewHandler(reg *registry.Service, ver *verifier.Service, rol *roles.Service, iss *issuer.Service, lc *lifecycle.Controller, audits audit.Store, auditor *audit.Publisher) *Handler {
	return &Handler{registry: reg, verifier: ver, roles: rol, issuers: iss, lifecycle: lc, audits: audits, auditor: auditor}
}

func (h *Handler) emit(ctx context.Context, event audit.Event) {
	if h.auditor != nil {
		h.auditor.Emit(ctx, event)
	}
}

// NewRouter wires all public endpoints. Mutating routes rely on the services
// for capability and pause checks; the router only authenticates.
func NewRouter(h *Handler, validator auth.TokenValidator) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(metadata.ClientMetadata)
	r.Use(auth.Authenticate(validator))

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/credentials", func(r chi.Router) {
		r.Post("/", h.handleIssue)
		r.Post("/batch", h.handleIssueBatch)
		r.Get("/", h.handleListCredentials)
		r.Get("/{id}", h.handleGetCredential)
		r.Get("/{id}/valid", h.handleIsValid)
		r.Get("/{id}/events", h.handleCredentialEvents)
		r.Post("/{id}/revoke", h.handleRevoke)
		r.Post("/{id}/status", h.handleSetStatus)
	})

	r.Route("/verify", func(r chi.Router) {
		r.Get("/{id}", h.handleVerify)
		r.Post("/batch", h.handleBatchVerify)
		r.Get("/holder", h.handleHasValidOfType)
	})

	r.Route("/roles", func(r chi.Router) {
		r.Post("/grant", h.handleGrantRole)
		r.Post("/revoke", h.handleRevokeRole)
		r.Get("/{identity}", h.handleListRoles)
	})

	r.Route("/issuers", func(r chi.Router) {
		r.Put("/profile", h.handleSetupIssuerProfile)
		r.Get("/{identity}", h.handleGetIssuerProfile)
		r.Post("/{identity}/active", h.handleSetIssuerActive)
	})

	r.Route("/system", func(r chi.Router) {
		r.Post("/pause", h.handlePause)
		r.Post("/resume", h.handleResume)
		r.Get("/status", h.handleSystemStatus)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleSystemStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"paused": h.lifecycle.IsPaused()})
}
