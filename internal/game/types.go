package game

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in-progress"
	StatusFinished   Status = "finished"
)

// Player is a member of a session. PlayerID is stable for the life of the
// membership; ConnID is the transport identity it was joined from.
type Player struct {
	PlayerID uuid.UUID
	ConnID   string
	Nickname string
	Score    int
	JoinedAt time.Time
}

// Answer is one submitted guess. Nickname is captured at submission so the
// round breakdown still names a player who has since left.
type Answer struct {
	PlayerID      uuid.UUID
	Nickname      string
	Value         float64
	QuestionIndex int
	SubmittedAt   time.Time
}

// Standing is one leaderboard row.
type Standing struct {
	PlayerID uuid.UUID
	Nickname string
	Score    int
}

// QuestionView is what players see of the active question.
type QuestionView struct {
	Index int
	Text  string
	Total int
}

// ScoreLine is the scored form of one Answer in a round.
type ScoreLine struct {
	PlayerID     uuid.UUID
	Nickname     string
	Answer       float64
	Diff         float64
	PointsEarned int
}

// RoundResult is produced by a reveal.
type RoundResult struct {
	QuestionIndex int
	CorrectAnswer float64
	Scores        []ScoreLine
	Leaderboard   []Standing
}

// AdvanceResult is either the next question or, once the quiz is exhausted,
// the final leaderboard.
type AdvanceResult struct {
	Finished    bool
	Question    QuestionView
	Leaderboard []Standing
}

// AnswerProgress counts answers for the active question against current players.
type AnswerProgress struct {
	QuestionIndex int
	Received      int
	Total         int
}
