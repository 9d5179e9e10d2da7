package httpclient

import (
	"net/http"
	"testing"
	"time"
)

func TestParseOpenAIRateLimitHeaders(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		expected RateLimitInfo
	}{
		{
			name:     "empty_headers",
			headers:  map[string]string{},
			expected: RateLimitInfo{},
		},
		{
			name: "retry_after_seconds",
			headers: map[string]string{
				"Retry-After": "30",
			},
			expected: RateLimitInfo{RetryAfter: 30 * time.Second},
		},
		{
			name: "reset_tokens_preferred_over_requests",
			headers: map[string]string{
				"x-ratelimit-reset-tokens":   "1700000100",
				"x-ratelimit-reset-requests": "1700000200",
			},
			expected: RateLimitInfo{ResetTime: 1700000100},
		},
		{
			name: "reset_requests_fallback",
			headers: map[string]string{
				"x-ratelimit-reset-requests": "1700000200",
			},
			expected: RateLimitInfo{ResetTime: 1700000200},
		},
		{
			name: "remaining_counters",
			headers: map[string]string{
				"x-ratelimit-remaining-requests": "42",
				"x-ratelimit-remaining-tokens":   "15000",
			},
			expected: RateLimitInfo{RequestsRemaining: 42, TokensRemaining: 15000},
		},
		{
			name: "malformed_values_ignored",
			headers: map[string]string{
				"Retry-After":                    "soon",
				"x-ratelimit-reset-tokens":       "tomorrow",
				"x-ratelimit-remaining-requests": "many",
			},
			expected: RateLimitInfo{},
		},
		{
			name: "all_headers_together",
			headers: map[string]string{
				"Retry-After":                    "5",
				"x-ratelimit-reset-tokens":       "1700000100",
				"x-ratelimit-remaining-requests": "10",
				"x-ratelimit-remaining-tokens":   "2000",
			},
			expected: RateLimitInfo{
				RetryAfter:        5 * time.Second,
				ResetTime:         1700000100,
				RequestsRemaining: 10,
				TokensRemaining:   2000,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			for k, v := range tt.headers {
				headers.Set(k, v)
			}

			info := ParseOpenAIRateLimitHeaders(headers)
			if info != tt.expected {
				t.Errorf("ParseOpenAIRateLimitHeaders() = %+v, want %+v", info, tt.expected)
			}
		})
	}
}

func TestParseRetryAfterHeader(t *testing.T) {
	headers := http.Header{}
	headers.Set("Retry-After", "12")
	headers.Set("x-ratelimit-remaining-requests", "99")

	info := ParseRetryAfterHeader(headers)
	if info.RetryAfter != 12*time.Second {
		t.Errorf("ParseRetryAfterHeader() RetryAfter = %v, want 12s", info.RetryAfter)
	}
	if info.RequestsRemaining != 0 {
		t.Errorf("ParseRetryAfterHeader() should ignore vendor headers, got %+v", info)
	}
}
