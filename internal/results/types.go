package results

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	ws "github.com/gokatarajesh/numquiz/pkg/http/ws"
)

// ErrNotFound is returned when no archived result exists for a room.
var ErrNotFound = errors.New("results: not found")

// Summary is the archived outcome of one finished game.
type Summary struct {
	GameID        uuid.UUID     `json:"game_id"`
	RoomID        string        `json:"room_id"`
	Title         string        `json:"title"`
	QuestionCount int           `json:"question_count"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	Standings     []ws.Standing `json:"standings"`
}

// Sink persists finished game summaries.
type Sink interface {
	Name() string
	Save(ctx context.Context, sum Summary) error
}
