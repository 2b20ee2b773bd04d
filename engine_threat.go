package authguard

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/authguard/internal/audit"
	"github.com/MrEthical07/authguard/threat"
)

// ScoreRequest describes the threat scoring operation and its observable
// behavior.
//
// The request is checked against the blocklist, the scanner user-agent list
// and the per ip+path rate windows before its content is scored. Blocklisted
// addresses, scanner agents and requests scoring above
// Threat.BlockThreshold fail with KindThreatBlocked; high scores also place
// the address on the blocklist for Threat.HighThreatBlock. Exceeding a rate
// window blocklists the address for Threat.RateLimitBlock and fails with
// KindRateLimitExceeded. Medium scores are allowed but counted and recorded.
//
// The returned Decision is populated on rejections too, so callers can set
// Retry-After from it.
func (e *Engine) ScoreRequest(ctx context.Context, req threat.Request) (threat.Decision, error) {
	if e == nil {
		return threat.Decision{}, ErrEngineNotReady
	}
	if !e.config.Threat.Enabled {
		return threat.Decision{Action: threat.ActionAllow, Reason: threat.DecisionClean, IP: req.IP}, nil
	}
	start := time.Now()
	defer func() { e.metrics.Observe(MetricScoreLatency, time.Since(start)) }()

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	d, err := e.threat.Evaluate(ctx, req)
	if err != nil {
		return d, e.failure("score_request", classify(err))
	}
	ctx = WithClientIP(ctx, d.IP)

	switch d.Action {
	case threat.ActionAllow:
		e.metricInc(MetricThreatAllowed)
		return d, nil

	case threat.ActionMonitor:
		e.metricInc(MetricThreatMonitored)
		e.emit(ctx, SecurityEvent{
			Type:       audit.TypeThreatMonitored,
			Severity:   SeverityMedium,
			Confidence: d.Score,
			Details:    "medium threat score",
			Metadata:   threatMetadata(req, d),
		})
		e.logger.Warn("request monitored",
			zap.String("ip", d.IP),
			zap.Int("score", d.Score),
			zap.Strings("threat_types", d.ThreatTypes),
			zap.Int64("monitor_count", d.MonitorCount),
		)
		return d, nil

	case threat.ActionRateLimit:
		e.metricInc(MetricRateLimitHit)
		e.emit(ctx, SecurityEvent{
			Type:       audit.TypeRateLimitExceeded,
			Severity:   SeverityMedium,
			Confidence: 60,
			Details:    "rate limit exceeded",
			Metadata: map[string]string{
				"path":        req.Path,
				"retry_after": strconv.Itoa(int(d.RetryAfter / time.Second)),
			},
		})
		err := newError(KindRateLimitExceeded, d.Reason, nil)
		err.RetryAfter = d.RetryAfter
		return d, e.failure("score_request", err)
	}

	// Block.
	switch d.Reason {
	case threat.DecisionBlocklisted:
		e.emit(ctx, SecurityEvent{
			Type:       audit.TypeThreatBlocked,
			Severity:   SeverityLow,
			IP:         d.IP,
			Confidence: 90,
			Details:    "request from blocked address",
			Metadata: map[string]string{
				"path":        req.Path,
				"retry_after": strconv.Itoa(int(d.RetryAfter / time.Second)),
			},
		})
	case threat.DecisionBlockedAgent:
		e.metricInc(MetricBlockedAgent)
		e.emit(ctx, SecurityEvent{
			Type:       audit.TypeBlockedUserAgent,
			Severity:   SeverityHigh,
			Confidence: 85,
			Details:    "scanner user agent",
			Metadata:   map[string]string{"user_agent": req.UserAgent, "path": req.Path},
		})
	case threat.DecisionHighThreat:
		e.emit(ctx, SecurityEvent{
			Type:       audit.TypeThreatDetected,
			Severity:   SeverityCritical,
			Confidence: d.Score,
			Details:    "high threat score; address blocked",
			Metadata:   threatMetadata(req, d),
		})
	}
	e.metricInc(MetricThreatBlocked)

	blocked := newError(KindThreatBlocked, d.Reason, nil)
	blocked.RetryAfter = d.RetryAfter
	blocked.ThreatTypes = append([]string(nil), d.ThreatTypes...)
	return d, e.failure("score_request", blocked)
}

func threatMetadata(req threat.Request, d threat.Decision) map[string]string {
	return map[string]string{
		"score":        strconv.Itoa(d.Score),
		"threat_types": strings.Join(d.ThreatTypes, ","),
		"method":       req.Method,
		"path":         req.Path,
	}
}
