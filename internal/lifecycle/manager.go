// Package lifecycle manages staff-side transitions of booking requests.
// Every transition is confirmed by the FlowKey API before it is reflected
// locally; the local list is never mutated optimistically.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/flowkey/flowkey-booking/internal/booking"
	"github.com/flowkey/flowkey-booking/internal/flowkey"
	"github.com/flowkey/flowkey-booking/internal/inflight"
	"github.com/flowkey/flowkey-booking/internal/notify"
	"github.com/flowkey/flowkey-booking/internal/observability/metrics"
	"github.com/flowkey/flowkey-booking/internal/session"
	"github.com/flowkey/flowkey-booking/pkg/logging"
)

var lifecycleTracer = otel.Tracer("flowkey.internal.lifecycle")

// ErrActionInFlight is returned when the same request already has an action
// running for the tenant.
var ErrActionInFlight = fmt.Errorf("an action on this booking request is already in progress: %w", booking.ErrConflict)

// API is the staff surface of the FlowKey client.
type API interface {
	ListRequests(ctx context.Context, sess *session.Session, f flowkey.ListFilter) (*flowkey.RequestList, error)
	GetRequest(ctx context.Context, sess *session.Session, id int64) (*booking.Request, error)
	ApplyAction(ctx context.Context, sess *session.Session, id int64, action booking.Action, reason string) (*flowkey.ActionResult, error)
}

// Notifier is refreshed after every confirmed transition.
type Notifier interface {
	Refresh(ctx context.Context, sess *session.Session) (*notify.Snapshot, error)
}

// Manager opens boards and serializes actions per request. One Manager is
// shared by all staff sessions.
type Manager struct {
	api      API
	notifier Notifier
	guard    *inflight.Guard
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
	now      func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithNotifier sets the feed refreshed after transitions.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithMetrics records transition outcomes.
func WithMetrics(bm *metrics.BookingMetrics) Option {
	return func(m *Manager) { m.metrics = bm }
}

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a lifecycle manager.
func NewManager(api API, logger *logging.Logger, opts ...Option) *Manager {
	if api == nil {
		panic("lifecycle: api required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	m := &Manager{
		api:    api,
		guard:  inflight.New(),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open fetches the request list for one staff view.
func (m *Manager) Open(ctx context.Context, sess *session.Session, filter flowkey.ListFilter) (*Board, error) {
	if sess == nil {
		return nil, fmt.Errorf("lifecycle: open board: %w", booking.ErrUnauthorized)
	}
	b := m.Board(sess, filter)
	if err := b.Refresh(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Board returns an unloaded board. Actions on it resolve requests through
// the detail endpoint until the first Refresh.
func (m *Manager) Board(sess *session.Session, filter flowkey.ListFilter) *Board {
	return &Board{manager: m, sess: sess, filter: filter}
}

// Board is one staff view of booking requests. Its list reflects the last
// fetch; Refresh re-reads it from the API.
type Board struct {
	manager *Manager
	sess    *session.Session
	filter  flowkey.ListFilter

	mu       sync.RWMutex
	requests []booking.Request
	total    int
	loadedAt time.Time
}

// Refresh re-fetches the list.
func (b *Board) Refresh(ctx context.Context) error {
	list, err := b.manager.api.ListRequests(ctx, b.sess, b.filter)
	if err != nil {
		return fmt.Errorf("lifecycle: list requests: %w", err)
	}
	b.mu.Lock()
	b.requests = list.Requests
	b.total = list.Total
	b.loadedAt = b.manager.now()
	b.mu.Unlock()
	return nil
}

// Requests returns a copy of the current list.
func (b *Board) Requests() []booking.Request {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]booking.Request, len(b.requests))
	copy(out, b.requests)
	return out
}

// Total is the server-side count matching the filter.
func (b *Board) Total() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.total
}

// LoadedAt is when the list was last fetched.
func (b *Board) LoadedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loadedAt
}

// Pending returns requests whose effective status at now is pending.
func (b *Board) Pending(now time.Time) []booking.Request {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []booking.Request
	for _, r := range b.requests {
		if r.EffectiveStatus(now) == booking.StatusPending {
			out = append(out, r)
		}
	}
	return out
}

// Counts tallies the list by effective status at now.
func (b *Board) Counts(now time.Time) map[booking.Status]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	counts := make(map[booking.Status]int)
	for _, r := range b.requests {
		counts[r.EffectiveStatus(now)]++
	}
	return counts
}

// Approve moves a pending request to approved. The API materializes the
// booking-link client record.
func (b *Board) Approve(ctx context.Context, id int64) (*flowkey.ActionResult, error) {
	return b.apply(ctx, id, booking.ActionApprove, "")
}

// Reject moves a pending request to rejected.
func (b *Board) Reject(ctx context.Context, id int64, reason string) (*flowkey.ActionResult, error) {
	return b.apply(ctx, id, booking.ActionReject, reason)
}

// Cancel moves an approved request to cancelled.
func (b *Board) Cancel(ctx context.Context, id int64, reason string) (*flowkey.ActionResult, error) {
	return b.apply(ctx, id, booking.ActionCancel, reason)
}

func (b *Board) lookup(ctx context.Context, id int64) (booking.Request, error) {
	b.mu.RLock()
	for _, r := range b.requests {
		if r.ID == id {
			b.mu.RUnlock()
			return r, nil
		}
	}
	b.mu.RUnlock()

	req, err := b.manager.api.GetRequest(ctx, b.sess, id)
	if err != nil {
		return booking.Request{}, fmt.Errorf("lifecycle: get request %d: %w", id, err)
	}
	return *req, nil
}

func (b *Board) apply(ctx context.Context, id int64, action booking.Action, reason string) (_ *flowkey.ActionResult, err error) {
	m := b.manager
	ctx, span := lifecycleTracer.Start(ctx, "lifecycle."+string(action))
	defer span.End()
	span.SetAttributes(
		attribute.String("flowkey.tenant", b.sess.TenantKey()),
		attribute.Int64("flowkey.booking_id", id),
	)
	defer func() {
		outcome := "ok"
		if err != nil {
			span.RecordError(err)
			outcome = string(booking.Classify(err))
		}
		m.metrics.ObserveTransition(string(action), outcome)
	}()

	release, ok := m.guard.TryAcquire(b.sess.TenantKey() + ":" + strconv.FormatInt(id, 10))
	if !ok {
		return nil, ErrActionInFlight
	}
	defer release()

	req, err := b.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := req.Allows(action, m.now()); err != nil {
		m.logger.Info("booking action blocked locally", "booking_id", id, "action", action, "status", req.Status, "error", err)
		return nil, fmt.Errorf("lifecycle: %s request %d: %w", action, id, err)
	}

	res, err := m.api.ApplyAction(ctx, b.sess, id, action, reason)
	if err != nil {
		if errors.Is(err, booking.ErrConflict) || errors.Is(err, booking.ErrExpired) {
			// Server status is authoritative; re-read it.
			if rerr := b.Refresh(ctx); rerr != nil {
				m.logger.Warn("board refresh after rejected action failed", "booking_id", id, "error", rerr)
			}
		}
		m.logger.Warn("booking action failed", "booking_id", id, "action", action, "kind", booking.Classify(err), "error", err)
		return nil, fmt.Errorf("lifecycle: %s request %d: %w", action, id, err)
	}

	m.logger.Info("booking action applied", "booking_id", id, "action", action, "status", res.Status, "booking_reference", res.Reference)
	if res.Client != nil {
		if verr := res.Client.Validate(); verr != nil {
			m.logger.Warn("dropping inconsistent client record from action result", "booking_id", id, "client_id", res.Client.ID, "error", verr)
			res.Client = nil
		} else {
			m.logger.Info("booking client materialized", "booking_id", id, "client_id", res.Client.ID, "client", res.Client.FullName())
		}
	}
	if rerr := b.Refresh(ctx); rerr != nil {
		m.logger.Warn("board refresh after action failed", "booking_id", id, "error", rerr)
	}
	if m.notifier != nil {
		if _, nerr := m.notifier.Refresh(ctx, b.sess); nerr != nil {
			m.logger.Warn("notification refresh after action failed", "booking_id", id, "error", nerr)
		}
	}
	return res, nil
}
