package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkey/flowkey-booking/internal/booking"
	"github.com/flowkey/flowkey-booking/internal/flowkey"
	"github.com/flowkey/flowkey-booking/internal/notify"
	"github.com/flowkey/flowkey-booking/internal/observability/metrics"
	"github.com/flowkey/flowkey-booking/internal/session"
)

var (
	now   = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	staff = &session.Session{Token: "tok", BusinessID: "7"}
)

// fakeServer holds authoritative request state the way the FlowKey API does.
type fakeServer struct {
	mu        sync.Mutex
	requests  map[int64]booking.Request
	lists     int
	gets      int
	actions   int
	actionErr error
	client    *booking.Client
	block     chan struct{}
	entered   chan struct{}
}

func newFakeServer(reqs ...booking.Request) *fakeServer {
	s := &fakeServer{requests: make(map[int64]booking.Request)}
	for _, r := range reqs {
		s.requests[r.ID] = r
	}
	return s
}

func (s *fakeServer) ListRequests(_ context.Context, _ *session.Session, f flowkey.ListFilter) (*flowkey.RequestList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	var out []booking.Request
	for id := int64(1); id <= 100; id++ {
		r, ok := s.requests[id]
		if !ok {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
	}
	return &flowkey.RequestList{Requests: out, Total: len(out)}, nil
}

func (s *fakeServer) GetRequest(_ context.Context, _ *session.Session, id int64) (*booking.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	r, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("flowkey: get_request returned 404: %w", booking.ErrNotFound)
	}
	return &r, nil
}

func (s *fakeServer) ApplyAction(_ context.Context, _ *session.Session, id int64, action booking.Action, reason string) (*flowkey.ActionResult, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions++
	if s.actionErr != nil {
		return nil, s.actionErr
	}
	r := s.requests[id]
	if r.Status != action.From() {
		return nil, &flowkey.APIError{Operation: string(action) + "_request", Status: 400, Message: "Booking is already " + string(r.Status)}
	}
	r.Status = action.To()
	if action == booking.ActionReject {
		r.RejectionReason = reason
	}
	s.requests[id] = r
	res := &flowkey.ActionResult{Success: true, Reference: r.Reference, Status: r.Status}
	if action == booking.ActionApprove && s.client != nil {
		c := *s.client
		res.Client = &c
	}
	return res, nil
}

func (s *fakeServer) status(id int64) booking.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id].Status
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *fakeNotifier) Refresh(context.Context, *session.Session) (*notify.Snapshot, error) {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
	return &notify.Snapshot{}, nil
}

func pending(id int64) booking.Request {
	return booking.Request{ID: id, Reference: fmt.Sprintf("BK-%d", id), Status: booking.StatusPending, ExpiresAt: now.Add(24 * time.Hour)}
}

func newTestManager(api API, n Notifier) *Manager {
	return NewManager(api, nil,
		WithNotifier(n),
		WithMetrics(metrics.NewBookingMetrics(prometheus.NewRegistry())),
		WithClock(func() time.Time { return now }),
	)
}

func TestApprove_RefreshesBoardAndNotifications(t *testing.T) {
	srv := newFakeServer(pending(1))
	n := &fakeNotifier{}
	board, err := newTestManager(srv, n).Open(context.Background(), staff, flowkey.ListFilter{})
	require.NoError(t, err)

	res, err := board.Approve(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusApproved, res.Status)
	assert.Equal(t, booking.StatusApproved, board.Requests()[0].Status)
	assert.Equal(t, 2, srv.lists)
	assert.Equal(t, 1, n.calls)
}

func TestApprove_ClientRecordIsCheckedBeforeReturn(t *testing.T) {
	reqID := int64(1)
	tests := []struct {
		name   string
		client booking.Client
		keep   bool
	}{
		{"booking link client", booking.Client{ID: 9, FirstName: "Ada", LastName: "Swim", Source: booking.SourceBookingLink, BookingRequestID: &reqID}, true},
		{"booking link without request", booking.Client{ID: 9, Source: booking.SourceBookingLink}, false},
		{"manual with request", booking.Client{ID: 9, Source: booking.SourceManual, BookingRequestID: &reqID}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeServer(pending(1))
			srv.client = &tt.client
			board, err := newTestManager(srv, nil).Open(context.Background(), staff, flowkey.ListFilter{})
			require.NoError(t, err)

			res, err := board.Approve(context.Background(), 1)
			require.NoError(t, err)
			assert.Equal(t, booking.StatusApproved, res.Status)
			if tt.keep {
				require.NotNil(t, res.Client)
				assert.Equal(t, "Ada Swim", res.Client.FullName())
			} else {
				assert.Nil(t, res.Client)
			}
		})
	}
}

func TestApprovedButExpiredIsNotCancelable(t *testing.T) {
	approvedAt := now.Add(-48 * time.Hour)
	req := booking.Request{ID: 1, Reference: "BK-1", Status: booking.StatusApproved, ApprovedAt: &approvedAt, ExpiresAt: now.Add(-time.Hour)}
	srv := newFakeServer(req)
	board, err := newTestManager(srv, nil).Open(context.Background(), staff, flowkey.ListFilter{})
	require.NoError(t, err)

	_, err = board.Cancel(context.Background(), 1, "pool closed")
	assert.ErrorIs(t, err, booking.ErrExpired)
	var expErr *booking.ExpiredError
	assert.ErrorAs(t, err, &expErr)
	assert.Zero(t, srv.actions, "expired requests must be blocked before any API call")
	assert.Equal(t, booking.StatusApproved, srv.status(1))
}

func TestRejectOnlyFromPending(t *testing.T) {
	for _, status := range []booking.Status{booking.StatusApproved, booking.StatusRejected, booking.StatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			req := pending(1)
			req.Status = status
			srv := newFakeServer(req)
			board, err := newTestManager(srv, nil).Open(context.Background(), staff, flowkey.ListFilter{})
			require.NoError(t, err)

			_, err = board.Reject(context.Background(), 1, "no")
			var tErr *booking.TransitionError
			require.ErrorAs(t, err, &tErr)
			assert.Equal(t, status, tErr.From)
			assert.ErrorIs(t, err, booking.ErrConflict)
			assert.Zero(t, srv.actions)
		})
	}
}

func TestPendingPastExpiryIsBlocked(t *testing.T) {
	req := pending(1)
	req.ExpiresAt = now.Add(-time.Minute)
	srv := newFakeServer(req)
	board, err := newTestManager(srv, nil).Open(context.Background(), staff, flowkey.ListFilter{})
	require.NoError(t, err)

	_, err = board.Approve(context.Background(), 1)
	assert.ErrorIs(t, err, booking.ErrExpired)
	assert.Zero(t, srv.actions)
	assert.Equal(t, booking.StatusPending, board.Requests()[0].Status, "derived expiry is never written back")
}

func TestConcurrentApproveSecondIsRejectedLocally(t *testing.T) {
	srv := newFakeServer(pending(1))
	srv.block = make(chan struct{})
	srv.entered = make(chan struct{}, 1)
	m := newTestManager(srv, nil)

	boardA, err := m.Open(context.Background(), staff, flowkey.ListFilter{})
	require.NoError(t, err)
	boardB, err := m.Open(context.Background(), staff, flowkey.ListFilter{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = boardA.Approve(context.Background(), 1)
	}()
	<-srv.entered

	_, err = boardB.Approve(context.Background(), 1)
	assert.ErrorIs(t, err, ErrActionInFlight)
	assert.ErrorIs(t, err, booking.ErrConflict)

	close(srv.block)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Equal(t, 1, srv.actions, "exactly one status change reaches the server")
	assert.Equal(t, booking.StatusApproved, srv.status(1))
}

func TestSecondApproveAfterFirstCompletesIsConflict(t *testing.T) {
	srv := newFakeServer(pending(1))
	board, err := newTestManager(srv, nil).Open(context.Background(), staff, flowkey.ListFilter{})
	require.NoError(t, err)

	_, err = board.Approve(context.Background(), 1)
	require.NoError(t, err)
	_, err = board.Approve(context.Background(), 1)
	assert.ErrorIs(t, err, booking.ErrConflict)
	assert.Equal(t, 1, srv.actions)
}

func TestStaleBoardServerConflictRefreshes(t *testing.T) {
	srv := newFakeServer(pending(1))
	m := newTestManager(srv, nil)
	stale, err := m.Open(context.Background(), staff, flowkey.ListFilter{})
	require.NoError(t, err)
	other, err := m.Open(context.Background(), staff, flowkey.ListFilter{})
	require.NoError(t, err)

	_, err = other.Reject(context.Background(), 1, "full")
	require.NoError(t, err)

	listsBefore := srv.lists
	_, err = stale.Approve(context.Background(), 1)
	assert.ErrorIs(t, err, booking.ErrConflict)
	assert.Equal(t, listsBefore+1, srv.lists, "conflict triggers a recovery refresh")
	assert.Equal(t, booking.StatusRejected, stale.Requests()[0].Status)
}

func TestTransportErrorDoesNotRefresh(t *testing.T) {
	srv := newFakeServer(pending(1))
	srv.actionErr = fmt.Errorf("flowkey: approve_request: dial tcp: %w", booking.ErrTransport)
	n := &fakeNotifier{}
	board, err := newTestManager(srv, n).Open(context.Background(), staff, flowkey.ListFilter{})
	require.NoError(t, err)

	_, err = board.Approve(context.Background(), 1)
	assert.ErrorIs(t, err, booking.ErrTransport)
	assert.Equal(t, 1, srv.lists)
	assert.Zero(t, n.calls)

	srv.actionErr = nil
	_, err = board.Approve(context.Background(), 1)
	assert.NoError(t, err, "transport failures are retryable")
}

func TestUnknownIDFallsBackToDetail(t *testing.T) {
	srv := newFakeServer(pending(1), pending(2))
	board, err := newTestManager(srv, nil).Open(context.Background(), staff, flowkey.ListFilter{Status: booking.StatusApproved})
	require.NoError(t, err)
	require.Empty(t, board.Requests())

	_, err = board.Approve(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.gets)

	_, err = board.Approve(context.Background(), 99)
	assert.True(t, errors.Is(err, booking.ErrNotFound))
}

func TestPendingAndCounts(t *testing.T) {
	expired := pending(2)
	expired.ExpiresAt = now.Add(-time.Hour)
	approved := pending(3)
	approved.Status = booking.StatusApproved
	srv := newFakeServer(pending(1), expired, approved)
	board, err := newTestManager(srv, nil).Open(context.Background(), staff, flowkey.ListFilter{})
	require.NoError(t, err)

	p := board.Pending(now)
	require.Len(t, p, 1)
	assert.Equal(t, int64(1), p[0].ID)

	counts := board.Counts(now)
	assert.Equal(t, 1, counts[booking.StatusPending])
	assert.Equal(t, 1, counts[booking.StatusExpired])
	assert.Equal(t, 1, counts[booking.StatusApproved])
	assert.Equal(t, 3, board.Total())
}

func TestOpenRequiresSession(t *testing.T) {
	_, err := newTestManager(newFakeServer(), nil).Open(context.Background(), nil, flowkey.ListFilter{})
	assert.ErrorIs(t, err, booking.ErrUnauthorized)
}

func TestUnloadedBoardActsThroughDetail(t *testing.T) {
	srv := newFakeServer(pending(5))
	board := newTestManager(srv, nil).Board(staff, flowkey.ListFilter{})

	_, err := board.Reject(context.Background(), 5, "duplicate")
	require.NoError(t, err)
	assert.Equal(t, 1, srv.gets)
	assert.Equal(t, booking.StatusRejected, srv.status(5))
	require.Len(t, board.Requests(), 1, "success refreshes the board")
	assert.Equal(t, "duplicate", board.Requests()[0].RejectionReason)
}
