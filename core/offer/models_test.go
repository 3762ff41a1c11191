package offer

import (
	"testing"
	"time"

	"github.com/volatiletech/null/v8"
)

func TestOffer_IsOpen(t *testing.T) {
	now := time.Date(2030, 5, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name        string
		offer       Offer
		wantExpired bool
		wantOpen    bool
	}{
		{name: "no deadline", offer: Offer{IsActive: true}, wantOpen: true},
		{name: "due later", offer: Offer{IsActive: true, Deadline: null.TimeFrom(now.AddDate(0, 0, 3))}, wantOpen: true},
		{name: "due today", offer: Offer{IsActive: true, Deadline: null.TimeFrom(time.Date(2030, 5, 10, 0, 0, 0, 0, time.UTC))}, wantOpen: true},
		{name: "due yesterday", offer: Offer{IsActive: true, Deadline: null.TimeFrom(now.AddDate(0, 0, -1))}, wantExpired: true},
		{name: "inactive", offer: Offer{IsActive: false}},
		{
			name:        "deadline in another zone",
			offer:       Offer{IsActive: true, Deadline: null.TimeFrom(time.Date(2030, 5, 9, 22, 0, 0, 0, time.FixedZone("CLT", -4*3600)))},
			wantOpen:    true, // 2030-05-10 02:00 UTC
			wantExpired: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.offer.IsExpired(now); got != tt.wantExpired {
				t.Errorf("IsExpired() = %v, want %v", got, tt.wantExpired)
			}
			if got := tt.offer.IsOpen(now); got != tt.wantOpen {
				t.Errorf("IsOpen() = %v, want %v", got, tt.wantOpen)
			}
		})
	}
}
