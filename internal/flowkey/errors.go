package flowkey

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/flowkey/flowkey-booking/internal/booking"
)

// APIError is a non-2xx response from the FlowKey API.
type APIError struct {
	Operation string
	Status    int
	Code      string
	Field     string
	Message   string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("flowkey: %s returned %d (%s): %s", e.Operation, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("flowkey: %s returned %d: %s", e.Operation, e.Status, e.Message)
}

// Unwrap exposes the booking sentinel the response maps to, so callers can
// use errors.Is against the shared taxonomy.
func (e *APIError) Unwrap() error {
	return e.sentinel()
}

func (e *APIError) sentinel() error {
	switch strings.ToLower(e.Code) {
	case "slot_unavailable", "slot_full", "session_full":
		return booking.ErrSlotUnavailable
	case "booking_expired", "expired":
		return booking.ErrExpired
	case "invalid_transition", "invalid_status", "conflict":
		return booking.ErrConflict
	case "not_found":
		return booking.ErrNotFound
	}

	msg := strings.ToLower(e.Message)
	switch {
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return booking.ErrUnauthorized
	case e.Status == http.StatusNotFound:
		return booking.ErrNotFound
	case e.Status >= 500:
		return booking.ErrTransport
	case e.Status == http.StatusGone || strings.Contains(msg, "expired"):
		return booking.ErrExpired
	case containsAny(msg, "no longer available", "fully booked", "not available", "no spots", "capacity"):
		return booking.ErrSlotUnavailable
	case e.Status == http.StatusConflict:
		return booking.ErrConflict
	case containsAny(msg, "already", "cannot", "can only", "not pending", "only pending", "only approved", "invalid transition"):
		return booking.ErrConflict
	}
	return booking.ErrValidation
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// parseErrorBody pulls a code, field and message out of the API's error
// shapes: {"error": "..."}, {"error": {"code","message"}}, {"detail": "..."},
// {"message": "..."} and DRF field maps like {"client_email": ["..."]}.
func parseErrorBody(body []byte) (code, field, message string) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", "", strings.TrimSpace(truncate(string(body), 300))
	}

	code = rawString(fields["code"])
	if raw, ok := fields["error"]; ok {
		var nested struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &nested) == nil && (nested.Code != "" || nested.Message != "") {
			if code == "" {
				code = nested.Code
			}
			message = nested.Message
		} else {
			message = rawString(raw)
		}
	}
	for _, key := range []string{"detail", "message"} {
		if message != "" {
			break
		}
		message = rawString(fields[key])
	}
	if message != "" {
		return code, "", message
	}

	if msgs := rawStrings(fields["non_field_errors"]); len(msgs) > 0 {
		return code, "", msgs[0]
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		if key != "code" && key != "success" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		if msgs := rawStrings(fields[key]); len(msgs) > 0 {
			return code, key, msgs[0]
		}
	}
	return code, "", strings.TrimSpace(truncate(string(body), 300))
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func rawStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	if s := rawString(raw); s != "" {
		return []string{s}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
