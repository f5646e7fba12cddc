package handlers

import (
	"net/http"

	"github.com/flowkey/flowkey-booking/internal/notify"
	"github.com/flowkey/flowkey-booking/pkg/logging"
)

// StaffNotificationsHandler serves the staff notification feed.
type StaffNotificationsHandler struct {
	feed   *notify.Feed
	logger *logging.Logger
}

// NewStaffNotificationsHandler creates the staff notification handler.
func NewStaffNotificationsHandler(feed *notify.Feed, logger *logging.Logger) *StaffNotificationsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StaffNotificationsHandler{feed: feed, logger: logger}
}

// List handles GET /staff/notifications.
func (h *StaffNotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	snap, err := h.feed.Refresh(r.Context(), staffSession(r))
	h.respond(w, snap, err)
}

// MarkRead handles POST /staff/notifications/{notificationID}/read.
func (h *StaffNotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "notificationID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	snap, err := h.feed.MarkRead(r.Context(), staffSession(r), id)
	h.respond(w, snap, err)
}

// MarkAllRead handles POST /staff/notifications/read-all.
func (h *StaffNotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	snap, err := h.feed.MarkAllRead(r.Context(), staffSession(r))
	h.respond(w, snap, err)
}

func (h *StaffNotificationsHandler) respond(w http.ResponseWriter, snap *notify.Snapshot, err error) {
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
