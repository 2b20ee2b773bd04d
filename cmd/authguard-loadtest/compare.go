package main

import "fmt"

const defaultThreshold = 0.30

// compare reports every phase whose p95 latency grew, or whose throughput
// fell, by more than threshold relative to baseline.
func compare(baseline, candidate map[string]phaseStats, threshold float64) []string {
	var failures []string
	for _, name := range phaseOrder {
		base, ok := baseline[name]
		if !ok {
			continue
		}
		cand, ok := candidate[name]
		if !ok {
			failures = append(failures, fmt.Sprintf("missing results for %s", name))
			continue
		}
		if base.P95 > 0 {
			delta := float64(cand.P95-base.P95) / float64(base.P95)
			if delta > threshold {
				failures = append(failures, fmt.Sprintf("%s p95 regressed by %+0.2f%% (limit %+0.2f%%)", name, delta*100, threshold*100))
			}
		}
		if base.OpsPerS > 0 {
			delta := (base.OpsPerS - cand.OpsPerS) / base.OpsPerS
			if delta > threshold {
				failures = append(failures, fmt.Sprintf("%s throughput dropped by %0.2f%% (limit %0.2f%%)", name, delta*100, threshold*100))
			}
		}
		if cand.Failures > base.Failures {
			failures = append(failures, fmt.Sprintf("%s failures rose from %d to %d", name, base.Failures, cand.Failures))
		}
	}
	return failures
}
