package reinforcement

import "time"

// =============================================================================
// REWARD SHAPING
// =============================================================================

// Feedback carries the signals the reward is shaped from. The satisfaction,
// effectiveness and meta-quality scores default to the neutral 0.5 when the
// feedback collaborator supplies nothing, leaving the success term dominant.
type Feedback struct {
	Success       bool          `json:"success"`
	Satisfaction  float64       `json:"satisfaction"`
	Effectiveness float64       `json:"effectiveness"`
	MetaQuality   float64       `json:"meta_quality"`
	Duration      time.Duration `json:"duration"`
}

// NeutralFeedback builds feedback with all optional signals at 0.5.
func NeutralFeedback(success bool, duration time.Duration) Feedback {
	return Feedback{
		Success:       success,
		Satisfaction:  0.5,
		Effectiveness: 0.5,
		MetaQuality:   0.5,
		Duration:      duration,
	}
}

// Reward shapes the scalar reward from feedback:
// base +0.5 on success / -0.3 on failure, weighted satisfaction,
// effectiveness and meta-quality deltas around neutral, and a time bonus.
// Always within [-1,1].
func Reward(fb Feedback) float64 {
	reward := -0.3
	if fb.Success {
		reward = 0.5
	}

	reward += (fb.Satisfaction - 0.5) * 0.4
	reward += (fb.Effectiveness - 0.5) * 0.3

	if fb.Duration < 500*time.Millisecond {
		reward += 0.1
	} else if fb.Duration > 2*time.Second {
		reward -= 0.1
	}

	reward += (fb.MetaQuality - 0.5) * 0.2

	if reward > 1 {
		return 1
	}
	if reward < -1 {
		return -1
	}
	return reward
}
