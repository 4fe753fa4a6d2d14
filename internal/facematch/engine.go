package facematch

import "github.com/kozaktomas/facelock/internal/constants"

// Engine holds the fixed-threshold nearest-neighbor decision rule.
type Engine struct {
	Threshold float64
}

// NewEngine creates an engine; a non-positive threshold falls back to the default.
func NewEngine(threshold float64) *Engine {
	if threshold <= 0 {
		threshold = constants.DefaultMatchThreshold
	}
	return &Engine{Threshold: threshold}
}

// Accept reports whether score is strictly above the threshold.
func (e *Engine) Accept(score float64) bool {
	return score > e.Threshold
}

// Decide turns a best-match lookup into a decision.
func (e *Engine) Decide(m Match, found bool) Decision {
	if !found {
		return DecisionNoMatch
	}
	if e.Accept(m.Score) {
		return DecisionAccept
	}
	return DecisionReject
}
