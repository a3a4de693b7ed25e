package orchestrator

// =============================================================================
// READ API - PERFORMANCE SUMMARY
// =============================================================================

// GroupStats aggregates executions for one loop or one signature.
type GroupStats struct {
	Executions    int     `json:"executions"`
	Successes     int     `json:"successes"`
	SuccessRate   float64 `json:"success_rate"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// PerformanceSummary is the aggregate view over the execution history.
type PerformanceSummary struct {
	TotalExecutions    int                   `json:"total_executions"`
	OverallSuccessRate float64               `json:"overall_success_rate"`
	OverallConfidence  float64               `json:"overall_confidence"`
	PerLoop            map[string]GroupStats `json:"per_loop"`
	PerSignature       map[string]GroupStats `json:"per_signature"`
	LearningErrors     int                   `json:"learning_errors"`
}

// PerformanceSummary aggregates per-loop and per-signature statistics over
// everything executed so far.
func (o *Orchestrator) PerformanceSummary() PerformanceSummary {
	o.mu.Lock()
	defer o.mu.Unlock()

	summary := PerformanceSummary{
		PerLoop:        make(map[string]GroupStats, len(o.perLoop)),
		PerSignature:   make(map[string]GroupStats, len(o.perSignature)),
		LearningErrors: o.learningErrors,
	}

	successes := 0
	confidenceSum := 0.0
	for _, agg := range o.perLoop {
		summary.TotalExecutions += agg.executions
		successes += agg.successes
		confidenceSum += agg.confidenceSum
	}
	if summary.TotalExecutions > 0 {
		summary.OverallSuccessRate = float64(successes) / float64(summary.TotalExecutions)
		summary.OverallConfidence = confidenceSum / float64(summary.TotalExecutions)
	}

	for id, agg := range o.perLoop {
		summary.PerLoop[id] = agg.stats()
	}
	for id, agg := range o.perSignature {
		summary.PerSignature[id] = agg.stats()
	}
	return summary
}

// Recent returns up to n most recent outcomes, newest last.
func (o *Orchestrator) Recent(n int) []Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	if n <= 0 || n > len(o.history) {
		n = len(o.history)
	}
	out := make([]Outcome, n)
	copy(out, o.history[len(o.history)-n:])
	return out
}

// SignaturePerformance reports the signature's success rate and average
// confidence for the learning engine's before/after snapshots. Signatures
// with no executions read as neutral.
func (o *Orchestrator) SignaturePerformance(signatureID string) (successRate, avgConfidence float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	agg := o.perSignature[signatureID]
	if agg == nil || agg.executions == 0 {
		return 0.5, 0.5
	}
	st := agg.stats()
	return st.SuccessRate, st.AvgConfidence
}

func (a *aggregate) stats() GroupStats {
	st := GroupStats{Executions: a.executions, Successes: a.successes}
	if a.executions > 0 {
		st.SuccessRate = float64(a.successes) / float64(a.executions)
		st.AvgConfidence = a.confidenceSum / float64(a.executions)
	}
	return st
}
