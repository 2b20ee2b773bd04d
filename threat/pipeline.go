package threat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authguard/internal/rate"
)

// Action is the pipeline verdict.
type Action int

const (
	ActionAllow Action = iota
	ActionMonitor
	ActionBlock
	ActionRateLimit
)

func (a Action) String() string {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionMonitor:
		return "monitor"
	case ActionBlock:
		return "block"
	case ActionRateLimit:
		return "rate_limit"
	default:
		return "unknown"
	}
}

// Decision reasons.
const (
	DecisionBlocklisted  = "blocklisted"
	DecisionBlockedAgent = "blocked_user_agent"
	DecisionRateLimited  = "rate_limited"
	DecisionHighThreat   = "high_threat"
	DecisionMediumThreat = "medium_threat"
	DecisionClean        = "clean"
)

// Decision is the result of evaluating one request.
type Decision struct {
	Action      Action
	Reason      string
	IP          string
	Score       int
	ThreatTypes []string
	RetryAfter  time.Duration
	Assessment  Assessment
	// MonitorCount is the monitoring counter after a medium-threat hit.
	MonitorCount int64
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Action == ActionAllow || d.Action == ActionMonitor
}

// PipelineConfig tunes thresholds and block durations.
type PipelineConfig struct {
	BlockThreshold   int
	MonitorThreshold int
	HighThreatBlock  time.Duration
	RateLimitBlock   time.Duration
	MonitorTTL       time.Duration
	BlockedAgents    []string
}

// DefaultPipelineConfig returns the production thresholds.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		BlockThreshold:   80,
		MonitorThreshold: 50,
		HighThreatBlock:  time.Hour,
		RateLimitBlock:   300 * time.Second,
		MonitorTTL:       time.Hour,
		BlockedAgents:    DefaultBlockedAgents(),
	}
}

// Pipeline evaluates requests against the blocklist, agent denylist, rate
// limiter and scorer.
type Pipeline struct {
	blocklist *Blocklist
	limiter   *rate.Limiter
	scorer    *Scorer
	config    PipelineConfig
}

// NewPipeline wires the stages. A nil limiter disables rate limiting; a nil
// scorer selects the default pattern set.
func NewPipeline(blocklist *Blocklist, limiter *rate.Limiter, scorer *Scorer, cfg PipelineConfig) *Pipeline {
	if scorer == nil {
		scorer = NewScorer(nil)
	}
	return &Pipeline{blocklist: blocklist, limiter: limiter, scorer: scorer, config: cfg}
}

// Evaluate runs every stage in order and returns the first rejecting
// decision, or an allow/monitor decision. Errors are backend failures only.
func (p *Pipeline) Evaluate(ctx context.Context, req Request) (Decision, error) {
	if req.IP == "" {
		req.IP = ClientIP(req.Header, req.RemoteAddr)
	}
	d := Decision{IP: req.IP}

	if p.blocklist != nil {
		entry, blocked, err := p.blocklist.Status(ctx, req.IP)
		if err != nil {
			return Decision{}, err
		}
		if blocked {
			d.Action = ActionBlock
			d.Reason = DecisionBlocklisted
			d.RetryAfter = entry.Remaining
			return d, nil
		}
	}

	ua := strings.ToLower(req.UserAgent)
	for _, agent := range p.config.BlockedAgents {
		if strings.Contains(ua, agent) {
			d.Action = ActionBlock
			d.Reason = DecisionBlockedAgent
			return d, nil
		}
	}

	if p.limiter != nil {
		res, err := p.limiter.Allow(ctx, req.IP, req.Path)
		if err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if !res.Allowed {
			if p.blocklist != nil {
				if err := p.blocklist.Block(ctx, req.IP, ReasonRateLimited, p.config.RateLimitBlock); err != nil {
					return Decision{}, err
				}
			}
			d.Action = ActionRateLimit
			d.Reason = DecisionRateLimited
			d.RetryAfter = p.config.RateLimitBlock
			return d, nil
		}
	}

	a := p.scorer.Score(req)
	d.Assessment = a
	d.Score = a.Score
	d.ThreatTypes = a.Categories()

	switch {
	case a.Score > p.config.BlockThreshold:
		if p.blocklist != nil {
			if err := p.blocklist.Block(ctx, req.IP, ReasonHighThreat, p.config.HighThreatBlock); err != nil {
				return Decision{}, err
			}
		}
		d.Action = ActionBlock
		d.Reason = DecisionHighThreat
		d.RetryAfter = p.config.HighThreatBlock
	case a.Score > p.config.MonitorThreshold:
		if p.blocklist != nil {
			n, err := p.blocklist.Monitor(ctx, req.IP, p.config.MonitorTTL)
			if err != nil {
				return Decision{}, err
			}
			d.MonitorCount = n
		}
		d.Action = ActionMonitor
		d.Reason = DecisionMediumThreat
	default:
		d.Action = ActionAllow
		d.Reason = DecisionClean
	}
	return d, nil
}
