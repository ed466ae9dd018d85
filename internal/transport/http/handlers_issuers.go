package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"attesta/internal/issuers"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/platform/httputil"
)

type registerIssuerRequest struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	AuthorizedClaims []string          `json:"authorizedClaims"`
	Metadata         map[string]string `json:"metadata"`
}

func (h *Handler) handleRegisterIssuer(w http.ResponseWriter, r *http.Request) {
	var req registerIssuerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	issuerID, err := id.ParseIssuerID(req.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	authorized, err := parseTopicIDs(req.AuthorizedClaims)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	iss, err := h.issuers.RegisterIssuer(r.Context(), issuerID, req.Name, authorized, req.Metadata)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toIssuerResponse(iss))
}

func (h *Handler) handleListIssuers(w http.ResponseWriter, r *http.Request) {
	roster, err := h.issuers.ListIssuers(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]issuerResponse, 0, len(roster))
	for _, iss := range roster {
		out = append(out, toIssuerResponse(iss))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetIssuer(w http.ResponseWriter, r *http.Request) {
	issuerID, err := id.ParseIssuerID(chi.URLParam(r, "issuerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	iss, err := h.issuers.GetIssuer(r.Context(), issuerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toIssuerResponse(iss))
}

type authorizeIssuerRequest struct {
	Topic string `json:"topic"`
}

func (h *Handler) handleAuthorizeIssuer(w http.ResponseWriter, r *http.Request) {
	issuerID, err := id.ParseIssuerID(chi.URLParam(r, "issuerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req authorizeIssuerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	topicID, err := id.ParseTopicID(req.Topic)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	iss, err := h.issuers.Authorize(r.Context(), issuerID, topicID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toIssuerResponse(iss))
}

func (h *Handler) handleRevokeAuthorization(w http.ResponseWriter, r *http.Request) {
	issuerID, err := id.ParseIssuerID(chi.URLParam(r, "issuerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	topicID, err := id.ParseTopicID(chi.URLParam(r, "topicID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	iss, err := h.issuers.RevokeAuthorization(r.Context(), issuerID, topicID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toIssuerResponse(iss))
}

type setIssuerStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleSetIssuerStatus(w http.ResponseWriter, r *http.Request) {
	issuerID, err := id.ParseIssuerID(chi.URLParam(r, "issuerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req setIssuerStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	iss, err := h.issuers.SetStatus(r.Context(), issuerID, issuers.Status(req.Status))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toIssuerResponse(iss))
}

func parseTopicIDs(raw []string) ([]id.TopicID, error) {
	out := make([]id.TopicID, 0, len(raw))
	for _, s := range raw {
		topicID, err := id.ParseTopicID(s)
		if err != nil {
			return nil, err
		}
		out = append(out, topicID)
	}
	return out, nil
}
