package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flowkey/flowkey-booking/internal/booking"
	"github.com/flowkey/flowkey-booking/internal/flowkey"
	"github.com/flowkey/flowkey-booking/internal/notify"
	"github.com/flowkey/flowkey-booking/pkg/logging"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Kind    booking.Kind `json:"kind"`
	Title   string       `json:"title"`
	Message string       `json:"message"`
	Field   string       `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func statusForKind(kind booking.Kind) int {
	switch kind {
	case booking.KindValidation:
		return http.StatusBadRequest
	case booking.KindConflict, booking.KindSlotUnavailable:
		return http.StatusConflict
	case booking.KindExpired:
		return http.StatusGone
	case booking.KindNotFound:
		return http.StatusNotFound
	case booking.KindUnauthorized:
		return http.StatusUnauthorized
	case booking.KindTransport:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError maps err onto the error envelope. Upstream field errors keep
// their field name so forms can highlight it.
func writeError(w http.ResponseWriter, logger *logging.Logger, err error) {
	if logger == nil {
		logger = logging.Default()
	}
	kind := booking.Classify(err)
	status := statusForKind(kind)
	notice := notify.NoticeFromError(err)
	body := errorBody{Kind: kind, Title: notice.Title, Message: notice.Message, Field: notice.Field}

	var apiErr *flowkey.APIError
	if body.Field == "" && errors.As(err, &apiErr) && kind == booking.KindValidation {
		body.Field = apiErr.Field
		body.Message = apiErr.Message
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "kind", kind, "status", status, "error", err)
	} else {
		logger.Debug("request rejected", "kind", kind, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]errorBody{"error": body})
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return &booking.ValidationError{Field: "body", Message: "Request body is required"}
		}
		return &booking.ValidationError{Field: "body", Message: "Request body is not valid JSON"}
	}
	return nil
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(r *http.Request, out any) error {
	if err := decodeJSON(r, out); err != nil {
		var vErr *booking.ValidationError
		if errors.As(err, &vErr) && vErr.Message == "Request body is required" {
			return nil
		}
		return err
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &booking.ValidationError{Field: name, Message: name + " must be a positive integer"}
	}
	return id, nil
}

func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &booking.ValidationError{Field: name, Message: name + " must be a positive integer"}
	}
	return id, nil
}
