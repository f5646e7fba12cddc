// Package notify keeps the staff notification feed current and turns
// booking outcomes into user-visible notices.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flowkey/flowkey-booking/internal/booking"
	"github.com/flowkey/flowkey-booking/internal/flowkey"
	"github.com/flowkey/flowkey-booking/internal/session"
	"github.com/flowkey/flowkey-booking/pkg/logging"
)

// API is the notification surface of the FlowKey client.
type API interface {
	ListNotifications(ctx context.Context, sess *session.Session) (*flowkey.NotificationList, error)
	MarkNotificationRead(ctx context.Context, sess *session.Session, id int64) error
	MarkAllNotificationsRead(ctx context.Context, sess *session.Session) error
}

// Snapshot is the feed as last fetched for a tenant.
type Snapshot struct {
	Notifications []booking.Notification `json:"notifications"`
	Unread        int                    `json:"unread_count"`
	FetchedAt     time.Time              `json:"fetched_at"`
}

// Feed fetches notification snapshots and remembers the latest per tenant.
type Feed struct {
	api    API
	logger *logging.Logger
	now    func() time.Time

	mu     sync.RWMutex
	latest map[string]*Snapshot
}

// NewFeed constructs a Feed.
func NewFeed(api API, logger *logging.Logger) *Feed {
	if logger == nil {
		logger = logging.Default()
	}
	return &Feed{api: api, logger: logger, now: time.Now, latest: make(map[string]*Snapshot)}
}

// Refresh fetches the feed for the session's tenant.
func (f *Feed) Refresh(ctx context.Context, sess *session.Session) (*Snapshot, error) {
	list, err := f.api.ListNotifications(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("notify: refresh feed: %w", err)
	}
	snap := &Snapshot{Notifications: list.Notifications, Unread: list.Unread, FetchedAt: f.now()}
	if snap.Notifications == nil {
		snap.Notifications = []booking.Notification{}
	}

	f.mu.Lock()
	f.latest[sess.TenantKey()] = snap
	f.mu.Unlock()

	f.logger.Debug("notification feed refreshed", "tenant", sess.TenantKey(), "count", len(snap.Notifications), "unread", snap.Unread)
	return snap, nil
}

// Latest returns the last snapshot fetched for the session's tenant.
func (f *Feed) Latest(sess *session.Session) (*Snapshot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snap, ok := f.latest[sess.TenantKey()]
	return snap, ok
}

// MarkRead marks one notification read and returns the refreshed feed.
func (f *Feed) MarkRead(ctx context.Context, sess *session.Session, id int64) (*Snapshot, error) {
	if err := f.api.MarkNotificationRead(ctx, sess, id); err != nil {
		return nil, fmt.Errorf("notify: mark %d read: %w", id, err)
	}
	return f.Refresh(ctx, sess)
}

// MarkAllRead marks the feed read and returns the refreshed feed.
func (f *Feed) MarkAllRead(ctx context.Context, sess *session.Session) (*Snapshot, error) {
	if err := f.api.MarkAllNotificationsRead(ctx, sess); err != nil {
		return nil, fmt.Errorf("notify: mark all read: %w", err)
	}
	return f.Refresh(ctx, sess)
}
