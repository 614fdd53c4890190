package cache

import (
	"testing"
	"time"
)

func TestCacheEntry_IsExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ttl := time.Hour

	tests := []struct {
		name      string
		timestamp time.Time
		want      bool
	}{
		{
			name:      "fresh entry",
			timestamp: now.Add(-1 * time.Minute),
			want:      false,
		},
		{
			name:      "one nanosecond before ttl",
			timestamp: now.Add(-ttl + time.Nanosecond),
			want:      false,
		},
		{
			name:      "exactly at ttl",
			timestamp: now.Add(-ttl),
			want:      true,
		},
		{
			name:      "long expired",
			timestamp: now.Add(-24 * time.Hour),
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{Metadata: Metadata{Timestamp: tt.timestamp}}
			if got := entry.IsExpired(now, ttl); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheEntry_Remaining(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ttl := 3600 * time.Second

	tests := []struct {
		name      string
		timestamp time.Time
		want      time.Duration
	}{
		{
			name:      "two seconds old",
			timestamp: now.Add(-2 * time.Second),
			want:      3598 * time.Second,
		},
		{
			name:      "already expired",
			timestamp: now.Add(-2 * time.Hour),
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{Metadata: Metadata{Timestamp: tt.timestamp}}
			if got := entry.Remaining(now, ttl); got != tt.want {
				t.Errorf("Remaining() = %v, want %v", got, tt.want)
			}
		})
	}
}
