package httptransport

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"attesta/internal/audit"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/requestcontext"
)

type roleRequest struct {
	Identity   string `json:"identity"`
	Capability string `json:"capability"`
}

func (req roleRequest) parse() (id.Identity, id.Capability, error) {
	identity, err := id.ParseIdentity(req.Identity)
	if err != nil {
		return "", "", err
	}
	capability, err := id.ParseCapability(req.Capability)
	if err != nil {
		return "", "", err
	}
	return identity, capability, nil
}

func (h *Handler) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed request body"))
		return
	}
	identity, capability, err := req.parse()
	if err != nil {
		writeError(w, err)
		return
	}
	actor := requestcontext.Caller(r.Context())
	if err := h.roles.Grant(r.Context(), actor, identity, capability); err != nil {
		writeError(w, err)
		return
	}
	h.emit(r.Context(), audit.Event{
		Action:  audit.ActionRoleGranted,
		Actor:   actor,
		Subject: identity,
		Detail:  string(capability),
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}

func (h *Handler) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed request body"))
		return
	}
	identity, capability, err := req.parse()
	if err != nil {
		writeError(w, err)
		return
	}
	actor := requestcontext.Caller(r.Context())
	if err := h.roles.Revoke(r.Context(), actor, identity, capability); err != nil {
		writeError(w, err)
		return
	}
	h.emit(r.Context(), audit.Event{
		Action:  audit.ActionRoleRevoked,
		Actor:   actor,
		Subject: identity,
		Detail:  string(capability),
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (h *Handler) handleListRoles(w http.ResponseWriter, r *http.Request) {
	identity, err := id.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		writeError(w, err)
		return
	}
	grants, err := h.roles.List(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": grants})
}

type issuerProfileRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Website     string `json:"website,omitempty"`
	Contact     string `json:"contact,omitempty"`
}

func (h *Handler) handleSetupIssuerProfile(w http.ResponseWriter, r *http.Request) {
	var req issuerProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed request body"))
		return
	}
	actor := requestcontext.Caller(r.Context())
	profile, err := h.issuers.Setup(r.Context(), actor, req.Name, req.Description, req.Website, req.Contact)
	if err != nil {
		writeError(w, err)
		return
	}
	h.emit(r.Context(), audit.Event{
		Action:  audit.ActionIssuerProfileUpdated,
		Actor:   actor,
		Subject: actor,
		Detail:  profile.Name,
	})
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleGetIssuerProfile(w http.ResponseWriter, r *http.Request) {
	identity, err := id.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		writeError(w, err)
		return
	}
	profile, err := h.issuers.Get(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func (h *Handler) handleSetIssuerActive(w http.ResponseWriter, r *http.Request) {
	identity, err := id.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed request body"))
		return
	}
	actor := requestcontext.Caller(r.Context())
	if err := h.issuers.SetActive(r.Context(), actor, identity, req.Active); err != nil {
		writeError(w, err)
		return
	}
	h.emit(r.Context(), audit.Event{
		Action:  audit.ActionIssuerActivityChanged,
		Actor:   actor,
		Subject: identity,
		Detail:  fmt.Sprintf("active=%t", req.Active),
	})
	writeJSON(w, http.StatusOK, map[string]bool{"active": req.Active})
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	actor := requestcontext.Caller(r.Context())
	if err := h.lifecycle.Pause(r.Context(), actor); err != nil {
		writeError(w, err)
		return
	}
	h.emit(r.Context(), audit.Event{Action: audit.ActionRegistryPaused, Actor: actor})
	writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	actor := requestcontext.Caller(r.Context())
	if err := h.lifecycle.Resume(r.Context(), actor); err != nil {
		writeError(w, err)
		return
	}
	h.emit(r.Context(), audit.Event{Action: audit.ActionRegistryResumed, Actor: actor})
	writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}
