package scoring

import (
	"errors"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNoSubmissions is returned when a round is scored without any answers.
var ErrNoSubmissions = errors.New("scoring: no submissions")

// ErrInvalidValue is returned when a guess or the correct answer is NaN or infinite.
var ErrInvalidValue = errors.New("scoring: value must be finite")

// ScoringConfig holds configurable scoring constants.
type ScoringConfig struct {
	PointsPerWin int // default: 1
}

// DefaultScoringConfig returns production defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{PointsPerWin: 1}
}

// Submission is one player's guess for the current question.
type Submission struct {
	PlayerID uuid.UUID
	Value    float64
}

// Outcome is the scored form of a Submission.
type Outcome struct {
	PlayerID     uuid.UUID
	Value        float64
	Diff         float64
	PointsEarned int
}

// Engine computes closest-wins round scores.
type Engine struct {
	config ScoringConfig
}

// NewEngine creates a scoring engine with the provided config.
func NewEngine(config ScoringConfig) *Engine {
	if config.PointsPerWin <= 0 {
		config.PointsPerWin = DefaultScoringConfig().PointsPerWin
	}
	return &Engine{config: config}
}

// PointsPerWin reports the award given to each closest guess.
func (e *Engine) PointsPerWin() int {
	return e.config.PointsPerWin
}

// Score awards PointsPerWin to every submission whose Diff equals the minimum
// Diff in the round, and 0 to the rest.
// Distances are subtracted in decimal so that guesses like 0.1 and 0.5 around 0.3
// tie, then rounded once to float64. Winners are picked on the rounded value that
// is reported, so two equal Diffs always earn the same points.
// Output order mirrors input order.
func (e *Engine) Score(subs []Submission, correct float64) ([]Outcome, error) {
	if len(subs) == 0 {
		return nil, ErrNoSubmissions
	}
	if !finite(correct) {
		return nil, ErrInvalidValue
	}

	target := decimal.NewFromFloat(correct)
	diffs := make([]float64, len(subs))
	minDiff := 0.0
	for i, sub := range subs {
		if !finite(sub.Value) {
			return nil, ErrInvalidValue
		}
		diffs[i] = decimal.NewFromFloat(sub.Value).Sub(target).Abs().InexactFloat64()
		if i == 0 || diffs[i] < minDiff {
			minDiff = diffs[i]
		}
	}

	outcomes := make([]Outcome, len(subs))
	for i, sub := range subs {
		points := 0
		if diffs[i] == minDiff {
			points = e.config.PointsPerWin
		}
		outcomes[i] = Outcome{
			PlayerID:     sub.PlayerID,
			Value:        sub.Value,
			Diff:         diffs[i],
			PointsEarned: points,
		}
	}
	return outcomes, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
