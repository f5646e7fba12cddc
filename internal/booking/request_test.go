package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func requestWith(status Status, expiresIn time.Duration) Request {
	return Request{ID: 7, Reference: "FK-7", Status: status, ExpiresAt: now.Add(expiresIn)}
}

func TestEffectiveStatus(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want Status
	}{
		{"pending before expiry", requestWith(StatusPending, time.Hour), StatusPending},
		{"pending after expiry reads expired", requestWith(StatusPending, -time.Minute), StatusExpired},
		{"approved after expiry keeps stored status", requestWith(StatusApproved, -time.Hour), StatusApproved},
		{"pending with no expiry", Request{Status: StatusPending}, StatusPending},
		{"stored expired", requestWith(StatusExpired, time.Hour), StatusExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.EffectiveStatus(now))
		})
	}
}

func TestEffectiveStatus_DoesNotMutate(t *testing.T) {
	req := requestWith(StatusPending, -time.Minute)
	_ = req.EffectiveStatus(now)
	assert.Equal(t, StatusPending, req.Status)
}

func TestAllows_ExpiryPrecedesStatus(t *testing.T) {
	approvedExpired := requestWith(StatusApproved, -time.Hour)

	err := approvedExpired.Allows(ActionCancel, now)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpired)
	assert.NotErrorIs(t, err, ErrConflict)
}

func TestAllows_RejectOnlyFromPending(t *testing.T) {
	for _, status := range []Status{StatusApproved, StatusRejected, StatusCancelled, StatusExpired} {
		t.Run(string(status), func(t *testing.T) {
			err := requestWith(status, time.Hour).Allows(ActionReject, now)
			require.Error(t, err)
		})
	}
	assert.NoError(t, requestWith(StatusPending, time.Hour).Allows(ActionReject, now))
}

func TestAllows_Matrix(t *testing.T) {
	tests := []struct {
		status Status
		action Action
		ok     bool
	}{
		{StatusPending, ActionApprove, true},
		{StatusPending, ActionReject, true},
		{StatusPending, ActionCancel, false},
		{StatusApproved, ActionCancel, true},
		{StatusApproved, ActionApprove, false},
		{StatusRejected, ActionApprove, false},
		{StatusCancelled, ActionCancel, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status)+"/"+string(tt.action), func(t *testing.T) {
			err := requestWith(tt.status, time.Hour).Allows(tt.action, now)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var te *TransitionError
			require.True(t, errors.As(err, &te), "expected TransitionError, got %v", err)
			assert.Equal(t, tt.status, te.From)
			assert.ErrorIs(t, err, ErrConflict)
		})
	}
}

func TestAllows_UnknownAction(t *testing.T) {
	err := requestWith(StatusPending, time.Hour).Allows(Action("delete"), now)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestActionTargets(t *testing.T) {
	assert.Equal(t, StatusApproved, ActionApprove.To())
	assert.Equal(t, StatusRejected, ActionReject.To())
	assert.Equal(t, StatusCancelled, ActionCancel.To())
	assert.Equal(t, StatusApproved, ActionCancel.From())
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus(" Pending ")
	assert.True(t, ok)
	assert.Equal(t, StatusPending, s)

	_, ok = ParseStatus("archived")
	assert.False(t, ok)

	s, ok = ParseStatus("")
	assert.True(t, ok)
	assert.Empty(t, s)
}
