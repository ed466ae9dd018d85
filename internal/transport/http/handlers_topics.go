package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"attesta/internal/topics"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/platform/httputil"
	"attesta/pkg/requestcontext"
)

type defineTopicRequest struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	Required          bool   `json:"required"`
	Category          string `json:"category"`
	DefaultExpiryDays int    `json:"defaultExpiryDays"`
	Renewable         bool   `json:"renewable"`
}

func (h *Handler) handleDefineTopic(w http.ResponseWriter, r *http.Request) {
	var req defineTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	topicID, err := id.ParseTopicID(req.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	def, err := topics.NewDefinition(topicID, req.Name, topics.Category(req.Category),
		requestcontext.Now(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	def.Description = req.Description
	def.Required = req.Required
	def.DefaultExpiryDays = req.DefaultExpiryDays
	def.Renewable = req.Renewable

	created, err := h.topics.DefineTopic(r.Context(), def)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toTopicResponse(created))
}

func (h *Handler) handleListTopics(w http.ResponseWriter, r *http.Request) {
	defs, err := h.topics.ListTopics(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]topicResponse, 0, len(defs))
	for _, def := range defs {
		out = append(out, toTopicResponse(def))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetTopic(w http.ResponseWriter, r *http.Request) {
	topicID, err := id.ParseTopicID(chi.URLParam(r, "topicID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	def, err := h.topics.GetTopic(r.Context(), topicID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTopicResponse(def))
}

type updateTopicRequest struct {
	Name              *string `json:"name"`
	Description       *string `json:"description"`
	Required          *bool   `json:"required"`
	DefaultExpiryDays *int    `json:"defaultExpiryDays"`
	Renewable         *bool   `json:"renewable"`
}

func (h *Handler) handleUpdateTopic(w http.ResponseWriter, r *http.Request) {
	topicID, err := id.ParseTopicID(chi.URLParam(r, "topicID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req updateTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	def, err := h.topics.UpdateTopic(r.Context(), topicID, topics.Patch{
		Name:              req.Name,
		Description:       req.Description,
		Required:          req.Required,
		DefaultExpiryDays: req.DefaultExpiryDays,
		Renewable:         req.Renewable,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTopicResponse(def))
}
