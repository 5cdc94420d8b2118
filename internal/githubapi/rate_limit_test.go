package githubapi

import (
	"net/http"
	"testing"
	"time"
)

func TestParseRateLimitHeaders(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		headers    map[string]string
		statusCode int
		want       RateLimitHeaders
	}{
		{
			name: "parses_primary_headers",
			headers: map[string]string{
				"X-RateLimit-Remaining": "42",
				"X-RateLimit-Used":      "4958",
				"X-RateLimit-Reset":     "1739836900",
			},
			statusCode: http.StatusOK,
			want: RateLimitHeaders{
				Remaining: 42,
				Used:      4958,
				ResetUnix: 1739836900,
			},
		},
		{
			name:       "marks_429_rate_limited",
			headers:    map[string]string{"Retry-After": "60"},
			statusCode: http.StatusTooManyRequests,
			want: RateLimitHeaders{
				RetryAfter:  60 * time.Second,
				RateLimited: true,
			},
		},
		{
			name:       "marks_403_rate_limited",
			headers:    map[string]string{},
			statusCode: http.StatusForbidden,
			want: RateLimitHeaders{
				RateLimited: true,
			},
		},
		{
			name:       "ignores_malformed_values",
			headers:    map[string]string{"X-RateLimit-Remaining": "lots", "Retry-After": "soon"},
			statusCode: http.StatusOK,
			want:       RateLimitHeaders{},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			header := make(http.Header)
			for key, value := range testCase.headers {
				header.Set(key, value)
			}

			got := ParseRateLimitHeaders(header, testCase.statusCode)
			if got != testCase.want {
				t.Fatalf("ParseRateLimitHeaders = %+v, want %+v", got, testCase.want)
			}
		})
	}
}

func TestRateLimitPolicyEvaluate(t *testing.T) {
	t.Parallel()

	now := time.Unix(1739836800, 0)
	policy := RateLimitPolicy{
		MinRemainingThreshold: 100,
		MinResetBuffer:        5 * time.Second,
		SecondaryLimitBackoff: 60 * time.Second,
		Now: func() time.Time {
			return now
		},
	}

	testCases := []struct {
		name        string
		headers     RateLimitHeaders
		wantAllow   bool
		wantWaitFor time.Duration
		wantReason  string
	}{
		{
			name:        "within_budget",
			headers:     RateLimitHeaders{Remaining: 4000},
			wantAllow:   true,
			wantWaitFor: 0,
			wantReason:  "within_budget",
		},
		{
			name: "rate_limited_with_retry_after",
			headers: RateLimitHeaders{
				RateLimited: true,
				RetryAfter:  30 * time.Second,
			},
			wantAllow:   false,
			wantWaitFor: 30 * time.Second,
			wantReason:  "rate_limited",
		},
		{
			name: "rate_limited_waits_for_reset",
			headers: RateLimitHeaders{
				RateLimited: true,
				ResetUnix:   now.Add(40 * time.Second).Unix(),
			},
			wantAllow:   false,
			wantWaitFor: 45 * time.Second,
			wantReason:  "rate_limited",
		},
		{
			name: "rate_limited_without_hints_defers_to_caller",
			headers: RateLimitHeaders{
				RateLimited: true,
			},
			wantAllow:   false,
			wantWaitFor: 0,
			wantReason:  "rate_limited",
		},
		{
			name: "below_threshold_waits_for_reset",
			headers: RateLimitHeaders{
				Remaining: 10,
				ResetUnix: now.Add(20 * time.Second).Unix(),
			},
			wantAllow:   false,
			wantWaitFor: 25 * time.Second,
			wantReason:  "remaining_below_threshold",
		},
		{
			name: "below_threshold_with_elapsed_reset_allows",
			headers: RateLimitHeaders{
				Remaining: 10,
				ResetUnix: now.Add(-time.Minute).Unix(),
			},
			wantAllow:   true,
			wantWaitFor: 0,
			wantReason:  "reset_elapsed",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got := policy.Evaluate(testCase.headers)
			if got.Allow != testCase.wantAllow {
				t.Fatalf("Allow = %v, want %v", got.Allow, testCase.wantAllow)
			}
			if got.WaitFor != testCase.wantWaitFor {
				t.Fatalf("WaitFor = %v, want %v", got.WaitFor, testCase.wantWaitFor)
			}
			if got.Reason != testCase.wantReason {
				t.Fatalf("Reason = %q, want %q", got.Reason, testCase.wantReason)
			}
		})
	}
}
