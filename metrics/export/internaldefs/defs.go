package internaldefs

import (
	"github.com/MrEthical07/authguard"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   authguard.MetricID
	Name string
	Help string
}

// HistogramDef names one latency histogram for export.
type HistogramDef struct {
	ID   authguard.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter.
var CounterDefs = []CounterDef{
	{ID: authguard.MetricLoginSuccess, Name: "authguard_login_success_total", Help: "Successful logins."},
	{ID: authguard.MetricLoginFailure, Name: "authguard_login_failure_total", Help: "Rejected credential verifications."},
	{ID: authguard.MetricAccountLocked, Name: "authguard_account_locked_total", Help: "Accounts locked after repeated failures."},
	{ID: authguard.MetricAccountLockedRejected, Name: "authguard_account_locked_rejected_total", Help: "Attempts rejected while an account was locked."},
	{ID: authguard.MetricAccountInactive, Name: "authguard_account_inactive_total", Help: "Attempts rejected for inactive accounts."},
	{ID: authguard.MetricSessionCreated, Name: "authguard_session_created_total", Help: "Created sessions."},
	{ID: authguard.MetricSessionEvicted, Name: "authguard_session_evicted_total", Help: "Sessions evicted by the concurrency cap."},
	{ID: authguard.MetricSessionRevoked, Name: "authguard_session_revoked_total", Help: "Revoked sessions."},
	{ID: authguard.MetricSuspiciousLocation, Name: "authguard_suspicious_location_total", Help: "Sessions flagged for a new country."},
	{ID: authguard.MetricTokensIssued, Name: "authguard_tokens_issued_total", Help: "Issued token pairs."},
	{ID: authguard.MetricRefreshSuccess, Name: "authguard_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authguard.MetricRefreshFailure, Name: "authguard_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: authguard.MetricRefreshReuseDetected, Name: "authguard_refresh_reuse_detected_total", Help: "Refresh tokens presented after use or revocation."},
	{ID: authguard.MetricTokenInvalid, Name: "authguard_token_invalid_total", Help: "Rejected tokens."},
	{ID: authguard.MetricPermissionDenied, Name: "authguard_permission_denied_total", Help: "Requests denied by the role table."},
	{ID: authguard.MetricThreatAllowed, Name: "authguard_threat_allowed_total", Help: "Requests allowed by threat scoring."},
	{ID: authguard.MetricThreatMonitored, Name: "authguard_threat_monitored_total", Help: "Medium-threat requests allowed under monitoring."},
	{ID: authguard.MetricThreatBlocked, Name: "authguard_threat_blocked_total", Help: "Requests blocked by threat scoring or the blocklist."},
	{ID: authguard.MetricBlockedAgent, Name: "authguard_blocked_agent_total", Help: "Requests blocked for a scanner user agent."},
	{ID: authguard.MetricRateLimitHit, Name: "authguard_rate_limit_hit_total", Help: "Requests over their rate window."},
	{ID: authguard.MetricStoreUnavailable, Name: "authguard_store_unavailable_total", Help: "Operations failed by an unavailable store."},
	{ID: authguard.MetricCryptoFailure, Name: "authguard_crypto_failure_total", Help: "Operations failed by a crypto error."},
	{ID: authguard.MetricAccountRegistered, Name: "authguard_account_registered_total", Help: "Accounts created through registration."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: authguard.MetricValidateLatency, Name: "authguard_validate_latency_seconds", Help: "ValidateAccess latency."},
	{ID: authguard.MetricScoreLatency, Name: "authguard_score_latency_seconds", Help: "ScoreRequest latency."},
}

// HistogramUpperBounds are the bucket bounds in seconds, excluding +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf last, for exporters that
// flatten buckets into gauges.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array.
func NormalizeBuckets(raw []uint64) [authguard.HistogramBucketCount]uint64 {
	var out [authguard.HistogramBucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [authguard.HistogramBucketCount]uint64) [authguard.HistogramBucketCount]uint64 {
	var out [authguard.HistogramBucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
