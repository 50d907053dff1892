package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
)

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	credID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.verifier.Verify(r.Context(), credID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type batchVerifyRequest struct {
	IDs []id.CredentialID `json:"ids"`
}

func (h *Handler) handleBatchVerify(w http.ResponseWriter, r *http.Request) {
	var req batchVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed request body"))
		return
	}
	result, err := h.verifier.BatchVerify(r.Context(), req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleHasValidOfType(w http.ResponseWriter, r *http.Request) {
	recipient, err := id.ParseIdentity(r.URL.Query().Get("recipient"))
	if err != nil {
		writeError(w, err)
		return
	}
	credentialType := r.URL.Query().Get("type")
	if credentialType == "" {
		writeError(w, dErrors.New(dErrors.CodeValidation, "type query parameter is required"))
		return
	}
	ok, credID, err := h.verifier.HasValidOfType(r.Context(), recipient, credentialType)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"valid": ok}
	if ok {
		resp["id"] = credID
	}
	writeJSON(w, http.StatusOK, resp)
}
