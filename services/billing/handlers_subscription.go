// handlers_subscription.go - subscriber self-service.
//
// POST /billing/subscriptions/{id}/cancel - cancel at period end
// POST /billing/downloads                 - presigned link to a pack file
package billing

import (
	"net/http"
	"time"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/auth"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/store"
)

type subscriptionResponse struct {
	ID                string     `json:"id"`
	SubscriberID      string     `json:"subscriber_id"`
	CreatorID         string     `json:"creator_id"`
	Status            string     `json:"status"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
}

func subscriptionView(sub *store.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:                sub.ID,
		SubscriberID:      sub.SubscriberID,
		CreatorID:         sub.CreatorID,
		Status:            sub.Status,
		CurrentPeriodEnd:  sub.CurrentPeriodEnd,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	caller, err := s.caller(r)
	if err != nil {
		s.writeError(w, r, "cancel_subscription", err)
		return
	}
	id, err := pathID(r, "subscription_id")
	if err != nil {
		s.writeError(w, r, "cancel_subscription", err)
		return
	}
	res, err := s.CancelSubscription(r.Context(), caller, id)
	if err != nil {
		s.writeError(w, r, "cancel_subscription", err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, res)
}

type downloadRequest struct {
	DumpPackID string `json:"dump_pack_id" validate:"required,uuid"`
	FileType   string `json:"file_type" validate:"required,oneof=project stems midi"`
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	caller, err := s.caller(r)
	if err != nil {
		s.writeError(w, r, "download_url", err)
		return
	}
	var req downloadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, "download_url", err)
		return
	}
	url, err := s.DownloadURL(r.Context(), caller, req.DumpPackID, req.FileType)
	if err != nil {
		s.writeError(w, r, "download_url", err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, map[string]string{"url": url})
}
