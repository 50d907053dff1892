package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"attesta/internal/credential"
	"attesta/internal/registry"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/requestcontext"
)

type issueRequest struct {
	Recipient   string     `json:"recipient"`
	Type        string     `json:"type"`
	Payload     string     `json:"payload"`
	MetadataURI string     `json:"metadata_uri,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func (req issueRequest) toServiceRequest() (registry.IssueRequest, error) {
	recipient, err := id.ParseIdentity(req.Recipient)
	if err != nil {
		return registry.IssueRequest{}, err
	}
	out := registry.IssueRequest{
		Recipient:   recipient,
		Type:        req.Type,
		Payload:     req.Payload,
		MetadataURI: req.MetadataURI,
	}
	if req.ExpiresAt != nil {
		out.ExpiresAt = *req.ExpiresAt
	}
	return out, nil
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed request body"))
		return
	}
	serviceReq, err := req.toServiceRequest()
	if err != nil {
		writeError(w, err)
		return
	}
	cred, err := h.registry.Issue(r.Context(), requestcontext.Caller(r.Context()), serviceReq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cred)
}

// batchIssueRequest carries parallel arrays. Recipients, types, and payloads
// must have equal length; expirations and metadata URIs may be omitted
// entirely but must match the length when present.
type batchIssueRequest struct {
	Recipients   []string     `json:"recipients"`
	Types        []string     `json:"types"`
	Payloads     []string     `json:"payloads"`
	MetadataURIs []string     `json:"metadata_uris,omitempty"`
	ExpiresAt    []*time.Time `json:"expires_at,omitempty"`
}

func (req batchIssueRequest) toServiceRequests() ([]registry.IssueRequest, error) {
	n := len(req.Recipients)
	if len(req.Types) != n || len(req.Payloads) != n {
		return nil, dErrors.New(dErrors.CodeValidation, "recipients, types, and payloads must have equal length")
	}
	if len(req.MetadataURIs) != 0 && len(req.MetadataURIs) != n {
		return nil, dErrors.New(dErrors.CodeValidation, "metadata_uris length must match recipients")
	}
	if len(req.ExpiresAt) != 0 && len(req.ExpiresAt) != n {
		return nil, dErrors.New(dErrors.CodeValidation, "expires_at length must match recipients")
	}

	out := make([]registry.IssueRequest, 0, n)
	for i := 0; i < n; i++ {
		entry := issueRequest{
			Recipient: req.Recipients[i],
			Type:      req.Types[i],
			Payload:   req.Payloads[i],
		}
		if len(req.MetadataURIs) != 0 {
			entry.MetadataURI = req.MetadataURIs[i]
		}
		if len(req.ExpiresAt) != 0 {
			entry.ExpiresAt = req.ExpiresAt[i]
		}
		serviceReq, err := entry.toServiceRequest()
		if err != nil {
			return nil, err
		}
		out = append(out, serviceReq)
	}
	return out, nil
}

func (h *Handler) handleIssueBatch(w http.ResponseWriter, r *http.Request) {
	var req batchIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed request body"))
		return
	}
	serviceReqs, err := req.toServiceRequests()
	if err != nil {
		writeError(w, err)
		return
	}
	creds, err := h.registry.IssueBatch(r.Context(), requestcontext.Caller(r.Context()), serviceReqs)
	if err != nil {
		writeError(w, err)
		return
	}
	ids := make([]id.CredentialID, 0, len(creds))
	for _, cred := range creds {
		ids = append(ids, cred.ID)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ids": ids})
}

func (h *Handler) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	credID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	cred, err := h.registry.Get(r.Context(), credID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cred)
}

func (h *Handler) handleIsValid(w http.ResponseWriter, r *http.Request) {
	credID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	valid, err := h.registry.IsValid(r.Context(), credID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

func (h *Handler) handleCredentialEvents(w http.ResponseWriter, r *http.Request) {
	credID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	events, err := h.audits.ListByCredential(r.Context(), credID)
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeInternal, "audit lookup failed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

type revokeRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	credID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed request body"))
		return
	}
	if err := h.registry.Revoke(r.Context(), requestcontext.Caller(r.Context()), credID, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	credID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed request body"))
		return
	}
	status, err := credential.ParseStatus(req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.registry.SetStatus(r.Context(), requestcontext.Caller(r.Context()), credID, status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

// handleListCredentials serves the three index queries. Exactly one of
// recipient, issuer, or type must be provided.
func (h *Handler) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	recipient := r.URL.Query().Get("recipient")
	issuerParam := r.URL.Query().Get("issuer")
	credentialType := r.URL.Query().Get("type")

	provided := 0
	for _, v := range []string{recipient, issuerParam, credentialType} {
		if v != "" {
			provided++
		}
	}
	if provided != 1 {
		writeError(w, dErrors.New(dErrors.CodeValidation, "provide exactly one of recipient, issuer, or type"))
		return
	}

	var (
		ids []id.CredentialID
		err error
	)
	switch {
	case recipient != "":
		var identity id.Identity
		if identity, err = id.ParseIdentity(recipient); err == nil {
			ids, err = h.registry.ListByRecipient(r.Context(), identity)
		}
	case issuerParam != "":
		var identity id.Identity
		if identity, err = id.ParseIdentity(issuerParam); err == nil {
			ids, err = h.registry.ListByIssuer(r.Context(), identity)
		}
	default:
		ids, err = h.registry.ListByType(r.Context(), credentialType)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ids": ids})
}
