package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"attesta/internal/claims"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/platform/httputil"
)

type issueClaimRequest struct {
	Address          string         `json:"address"`
	Topic            string         `json:"topic"`
	Issuer           string         `json:"issuer"`
	Data             map[string]any `json:"data"`
	ExpiresAt        *string        `json:"expiresAt"`
	VerificationHash string         `json:"verificationHash"`
}

func (h *Handler) handleIssueClaim(w http.ResponseWriter, r *http.Request) {
	var req issueClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	address, err := id.ParseAddress(req.Address)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	topicID, err := id.ParseTopicID(req.Topic)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	issuerID, err := id.ParseIssuerID(req.Issuer)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	expiresAt, err := parseOptionalTime(req.ExpiresAt)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	claim, err := h.ledger.IssueClaim(r.Context(), claims.IssueRequest{
		Address:          address,
		Topic:            topicID,
		Issuer:           issuerID,
		Data:             req.Data,
		ExpiresAt:        expiresAt,
		VerificationHash: req.VerificationHash,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.verifier.InvalidateCache(r.Context(), address)
	httputil.WriteJSON(w, http.StatusCreated, toClaimResponse(claim))
}

func (h *Handler) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	claim, err := h.ledger.GetClaim(r.Context(), claimID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toClaimResponse(claim))
}

func (h *Handler) handleListClaims(w http.ResponseWriter, r *http.Request) {
	address, err := id.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	list, err := h.ledger.ListByAddress(r.Context(), address)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]claimResponse, 0, len(list))
	for _, claim := range list {
		out = append(out, toClaimResponse(claim))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

type revokeClaimRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleRevokeClaim(w http.ResponseWriter, r *http.Request) {
	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req revokeClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	claim, err := h.ledger.RevokeClaim(r.Context(), claimID, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.verifier.InvalidateCache(r.Context(), claim.Address)
	httputil.WriteJSON(w, http.StatusOK, toClaimResponse(claim))
}

type updateClaimRequest struct {
	Data      map[string]any `json:"data"`
	ExpiresAt *string        `json:"expiresAt"`
}

func (h *Handler) handleUpdateClaim(w http.ResponseWriter, r *http.Request) {
	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req updateClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	expiresAt, err := parseOptionalTime(req.ExpiresAt)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	claim, err := h.ledger.UpdateClaim(r.Context(), claimID, claims.Patch{
		Data:      req.Data,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.verifier.InvalidateCache(r.Context(), claim.Address)
	httputil.WriteJSON(w, http.StatusOK, toClaimResponse(claim))
}

func (h *Handler) handleResolveExpiry(w http.ResponseWriter, r *http.Request) {
	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	claim, err := h.ledger.ResolveExpiry(r.Context(), claimID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.verifier.InvalidateCache(r.Context(), claim.Address)
	httputil.WriteJSON(w, http.StatusOK, toClaimResponse(claim))
}

type batchClaimOpRequest struct {
	Op        string         `json:"op"`
	ClaimID   string         `json:"claimId"`
	Reason    string         `json:"reason"`
	Data      map[string]any `json:"data"`
	ExpiresAt *string        `json:"expiresAt"`
}

type batchClaimsRequest struct {
	Operations []batchClaimOpRequest `json:"operations"`
}

type batchClaimOpResponse struct {
	ClaimID string         `json:"claimId"`
	Claim   *claimResponse `json:"claim,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type batchClaimsResponse struct {
	Succeeded int                    `json:"succeeded"`
	Failed    int                    `json:"failed"`
	Results   []batchClaimOpResponse `json:"results"`
}

func (h *Handler) handleBatchClaims(w http.ResponseWriter, r *http.Request) {
	var req batchClaimsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if len(req.Operations) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "operations list is empty"))
		return
	}

	resp := batchClaimsResponse{Results: make([]batchClaimOpResponse, len(req.Operations))}
	ops := make([]claims.BatchOp, 0, len(req.Operations))
	opIndex := make([]int, 0, len(req.Operations))
	for i, opReq := range req.Operations {
		op, err := opReq.toBatchOp()
		if err != nil {
			resp.Results[i] = batchClaimOpResponse{ClaimID: opReq.ClaimID, Error: err.Error()}
			resp.Failed++
			continue
		}
		ops = append(ops, op)
		opIndex = append(opIndex, i)
	}

	for j, result := range h.ledger.BatchUpdate(r.Context(), ops) {
		i := opIndex[j]
		entry := batchClaimOpResponse{ClaimID: result.ClaimID.String()}
		if result.Err != nil {
			entry.Error = result.Err.Error()
			resp.Failed++
		} else {
			claim := toClaimResponse(result.Claim)
			entry.Claim = &claim
			resp.Succeeded++
			h.verifier.InvalidateCache(r.Context(), result.Claim.Address)
		}
		resp.Results[i] = entry
	}
	httputil.WriteJSON(w, http.StatusMultiStatus, resp)
}

func (req batchClaimOpRequest) toBatchOp() (claims.BatchOp, error) {
	claimID, err := id.ParseClaimID(req.ClaimID)
	if err != nil {
		return claims.BatchOp{}, err
	}
	expiresAt, err := parseOptionalTime(req.ExpiresAt)
	if err != nil {
		return claims.BatchOp{}, err
	}
	return claims.BatchOp{
		Kind:    claims.BatchOpKind(req.Op),
		ClaimID: claimID,
		Patch:   claims.Patch{Data: req.Data, ExpiresAt: expiresAt},
		Reason:  req.Reason,
	}, nil
}

func parseOptionalTime(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeValidation, "invalid timestamp: %s", *raw)
	}
	return &t, nil
}
