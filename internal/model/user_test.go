package model

import (
	"testing"
	"time"
)

func TestRefreshTokenActive(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	revoked := now.Add(-time.Hour)
	cases := []struct {
		name string
		tok  RefreshToken
		want bool
	}{
		{"live", RefreshToken{ExpiresAt: now.Add(time.Hour)}, true},
		{"expired", RefreshToken{ExpiresAt: now.Add(-time.Minute)}, false},
		{"expires this instant", RefreshToken{ExpiresAt: now}, false},
		{"revoked", RefreshToken{ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.tok.Active(now); got != tc.want {
				t.Errorf("Active = %v, want %v", got, tc.want)
			}
		})
	}
}
