package booking

import (
	"errors"
	"testing"
)

func TestClientValidate(t *testing.T) {
	reqID := int64(42)
	tests := []struct {
		name    string
		client  Client
		wantErr bool
	}{
		{"manual without reference", Client{Source: SourceManual}, false},
		{"manual with reference", Client{Source: SourceManual, BookingRequestID: &reqID}, true},
		{"booking link with reference", Client{Source: SourceBookingLink, BookingRequestID: &reqID}, false},
		{"booking link without reference", Client{Source: SourceBookingLink}, true},
		{"unknown source", Client{Source: "import"}, true},
		{"bad dob", Client{Source: SourceManual, DOB: "01/02/2015"}, true},
		{"good dob", Client{Source: SourceManual, DOB: "2015-01-02"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.client.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestClientFullName(t *testing.T) {
	if got := (Client{FirstName: "Ada", LastName: "Swim"}).FullName(); got != "Ada Swim" {
		t.Fatalf("FullName() = %q", got)
	}
	if got := (Client{LastName: "Swim"}).FullName(); got != "Swim" {
		t.Fatalf("FullName() = %q", got)
	}
}
