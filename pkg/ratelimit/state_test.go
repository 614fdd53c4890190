package ratelimit

import (
	"net/http"
	"testing"
	"time"
)

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		value  string
		want   time.Duration
		wantOK bool
	}{
		{"seconds", "30", 30 * time.Second, true},
		{"zero", "0", 0, true},
		{"http date", now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second, true},
		{"past date", now.Add(-time.Minute).Format(http.TimeFormat), 0, true},
		{"capped", "86400", MaxBackoff, true},
		{"negative", "-5", 0, false},
		{"garbage", "soon", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseRetryAfter(tt.value, now)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ParseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestHostState_Block(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newHostState(Config{})

	if d := s.blockedFor(now); d != 0 {
		t.Errorf("fresh state blocked for %v", d)
	}

	s.block(now.Add(time.Minute))
	s.block(now.Add(10 * time.Second)) // shorter pause must not shorten the block

	if d := s.blockedFor(now); d != time.Minute {
		t.Errorf("blockedFor = %v, want 1m", d)
	}
	if d := s.blockedFor(now.Add(2 * time.Minute)); d != 0 {
		t.Errorf("blockedFor after expiry = %v, want 0", d)
	}
}
