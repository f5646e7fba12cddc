package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/flowkey/flowkey-booking/internal/booking"
	"github.com/flowkey/flowkey-booking/internal/flowkey"
	"github.com/flowkey/flowkey-booking/internal/lifecycle"
	"github.com/flowkey/flowkey-booking/internal/notify"
	"github.com/flowkey/flowkey-booking/internal/session"
	"github.com/flowkey/flowkey-booking/pkg/logging"
)

// StaffRequestsHandler serves the staff booking-request board.
type StaffRequestsHandler struct {
	manager *lifecycle.Manager
	logger  *logging.Logger
	now     func() time.Time
}

// NewStaffRequestsHandler creates the staff booking-request handler.
func NewStaffRequestsHandler(manager *lifecycle.Manager, logger *logging.Logger) *StaffRequestsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StaffRequestsHandler{manager: manager, logger: logger, now: time.Now}
}

type requestView struct {
	booking.Request
	EffectiveStatus booking.Status `json:"effective_status"`
	Terminal        bool           `json:"terminal"`
}

type boardView struct {
	Requests     []requestView          `json:"requests"`
	Total        int                    `json:"total"`
	Counts       map[booking.Status]int `json:"counts"`
	PendingCount int                    `json:"pending_count"`
	LoadedAt     time.Time              `json:"loaded_at"`
}

func (h *StaffRequestsHandler) view(b *lifecycle.Board) boardView {
	now := h.now()
	reqs := b.Requests()
	out := make([]requestView, 0, len(reqs))
	for _, r := range reqs {
		eff := r.EffectiveStatus(now)
		out = append(out, requestView{Request: r, EffectiveStatus: eff, Terminal: eff.Terminal()})
	}
	return boardView{
		Requests:     out,
		Total:        b.Total(),
		Counts:       b.Counts(now),
		PendingCount: len(b.Pending(now)),
		LoadedAt:     b.LoadedAt(),
	}
}

// staffSession returns the session set by the staff auth middleware, or nil.
func staffSession(r *http.Request) *session.Session {
	sess, _ := session.FromContext(r.Context())
	return sess
}

func parseFilter(r *http.Request) (flowkey.ListFilter, error) {
	q := r.URL.Query()
	status, ok := booking.ParseStatus(q.Get("status"))
	if !ok {
		return flowkey.ListFilter{}, &booking.ValidationError{Field: "status", Message: "unknown status " + q.Get("status")}
	}
	return flowkey.ListFilter{
		Status:         status,
		Search:         strings.TrimSpace(q.Get("search")),
		IncludeDeleted: q.Get("include_deleted") == "true",
	}, nil
}

// List returns the booking requests visible to the staff session.
// GET /staff/booking-requests
func (h *StaffRequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	board, err := h.manager.Open(r.Context(), staffSession(r), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(board))
}

// Approve handles POST /staff/booking-requests/{requestID}/approve.
func (h *StaffRequestsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, booking.ActionApprove)
}

// Reject handles POST /staff/booking-requests/{requestID}/reject.
func (h *StaffRequestsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, booking.ActionReject)
}

// Cancel handles POST /staff/booking-requests/{requestID}/cancel.
func (h *StaffRequestsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, booking.ActionCancel)
}

// act runs an action through an unloaded board so the request is re-read
// before the transition is attempted.
func (h *StaffRequestsHandler) act(w http.ResponseWriter, r *http.Request, action booking.Action) {
	id, err := idParam(r, "requestID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeOptionalJSON(r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	board := h.manager.Board(staffSession(r), filter)
	var res *flowkey.ActionResult
	switch action {
	case booking.ActionApprove:
		res, err = board.Approve(r.Context(), id)
	case booking.ActionReject:
		res, err = board.Reject(r.Context(), id, body.Reason)
	case booking.ActionCancel:
		res, err = board.Cancel(r.Context(), id, body.Reason)
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("booking request transitioned", "action", action, "request_id", id, "reference", res.Reference)
	writeJSON(w, http.StatusOK, map[string]any{
		"result": res,
		"notice": notify.NoticeForTransition(action, res.Reference),
		"board":  h.view(board),
	})
}
