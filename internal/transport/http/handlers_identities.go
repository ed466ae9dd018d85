package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"attesta/internal/identity"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/platform/httputil"
)

type registerIdentityRequest struct {
	Address        string   `json:"address"`
	UserID         string   `json:"userId"`
	IdentityKey    string   `json:"identityKey"`
	TrustedIssuers []string `json:"trustedIssuers"`
}

func (req registerIdentityRequest) toItem() (identity.RegisterItem, error) {
	address, err := id.ParseAddress(req.Address)
	if err != nil {
		return identity.RegisterItem{}, err
	}
	allowed := make([]id.IssuerID, 0, len(req.TrustedIssuers))
	for _, s := range req.TrustedIssuers {
		issuerID, err := id.ParseIssuerID(s)
		if err != nil {
			return identity.RegisterItem{}, err
		}
		allowed = append(allowed, issuerID)
	}
	return identity.RegisterItem{
		Address:        address,
		UserID:         id.UserID(req.UserID),
		IdentityKey:    req.IdentityKey,
		TrustedIssuers: allowed,
	}, nil
}

func (h *Handler) handleRegisterIdentity(w http.ResponseWriter, r *http.Request) {
	var req registerIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	item, err := req.toItem()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rec, err := h.identities.RegisterIdentity(r.Context(), item.Address, item.UserID, item.IdentityKey, item.TrustedIssuers)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toIdentityResponse(rec))
}

type batchRegisterRequest struct {
	Identities []registerIdentityRequest `json:"identities"`
}

type batchItemResponse struct {
	Address  string            `json:"address"`
	Identity *identityResponse `json:"identity,omitempty"`
	Error    string            `json:"error,omitempty"`
}

type batchRegisterResponse struct {
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Results   []batchItemResponse `json:"results"`
}

// handleBatchRegister registers identities with per-item isolation: invalid
// items are reported in place and never block their siblings.
func (h *Handler) handleBatchRegister(w http.ResponseWriter, r *http.Request) {
	var req batchRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if len(req.Identities) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "identities list is empty"))
		return
	}

	resp := batchRegisterResponse{Results: make([]batchItemResponse, len(req.Identities))}
	items := make([]identity.RegisterItem, 0, len(req.Identities))
	itemIndex := make([]int, 0, len(req.Identities))
	for i, itemReq := range req.Identities {
		item, err := itemReq.toItem()
		if err != nil {
			resp.Results[i] = batchItemResponse{Address: itemReq.Address, Error: err.Error()}
			resp.Failed++
			continue
		}
		items = append(items, item)
		itemIndex = append(itemIndex, i)
	}

	for j, result := range h.identities.BatchRegister(r.Context(), items) {
		i := itemIndex[j]
		entry := batchItemResponse{Address: result.Address.String()}
		if result.Err != nil {
			entry.Error = result.Err.Error()
			resp.Failed++
		} else {
			rec := toIdentityResponse(result.Record)
			entry.Identity = &rec
			resp.Succeeded++
		}
		resp.Results[i] = entry
	}
	httputil.WriteJSON(w, http.StatusMultiStatus, resp)
}

func (h *Handler) handleListIdentities(w http.ResponseWriter, r *http.Request) {
	records, err := h.identities.ListIdentities(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]identityResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toIdentityResponse(rec))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetIdentity(w http.ResponseWriter, r *http.Request) {
	address, err := id.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rec, err := h.identities.GetIdentity(r.Context(), address)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toIdentityResponse(rec))
}

type updateIdentityStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *Handler) handleUpdateIdentityStatus(w http.ResponseWriter, r *http.Request) {
	address, err := id.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req updateIdentityStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	rec, err := h.identities.UpdateStatus(r.Context(), address, identity.Status(req.Status), req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.verifier.InvalidateCache(r.Context(), address)
	httputil.WriteJSON(w, http.StatusOK, toIdentityResponse(rec))
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	address, err := id.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.auditTrail.ListByAddress(r.Context(), address)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]auditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toAuditEventResponse(e))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
