package httptransport

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	id "attesta/pkg/domain"
	"attesta/pkg/platform/httputil"
)

// handleVerifyIdentity answers the compliance question for one address.
// Non-compliance is a 200 with isVerified=false; only infrastructure
// faults produce error statuses. An optional ?topics=A,B query overrides
// the registry's required set.
func (h *Handler) handleVerifyIdentity(w http.ResponseWriter, r *http.Request) {
	address, err := id.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var required []id.TopicID
	if raw := r.URL.Query().Get("topics"); raw != "" {
		required, err = parseTopicIDs(strings.Split(raw, ","))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	res, err := h.verifier.VerifyIdentity(r.Context(), address, required)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVerifyIdentityResponse(res))
}

func (h *Handler) handleVerifyClaim(w http.ResponseWriter, r *http.Request) {
	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	check, err := h.verifier.VerifyClaim(r.Context(), claimID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVerifyClaimResponse(check))
}

func (h *Handler) handleComplianceReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.reporter.GenerateReport(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
