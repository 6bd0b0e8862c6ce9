package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/gokatarajesh/numquiz/internal/db/store"
	"github.com/gokatarajesh/numquiz/internal/results"
	ws "github.com/gokatarajesh/numquiz/pkg/http/ws"
)

type gameStore interface {
	SaveGame(ctx context.Context, game store.InsertGameParams, rows []store.InsertGameResultParams) error
	ListRecentGames(ctx context.Context, limit int32) ([]store.Game, error)
	ListGameResults(ctx context.Context, gameIDs []pgtype.UUID) ([]store.GameResult, error)
}

// GameRepository persists finished games to Postgres.
type GameRepository struct {
	store gameStore
}

// NewGameRepository constructs a new game repository.
func NewGameRepository(store gameStore) *GameRepository {
	return &GameRepository{store: store}
}

// Name identifies the sink in logs and metrics.
func (r *GameRepository) Name() string { return "postgres" }

// Save writes a finished game and its final standings.
func (r *GameRepository) Save(ctx context.Context, sum results.Summary) error {
	gameID := pgtype.UUID{Bytes: sum.GameID, Valid: true}

	rows := make([]store.InsertGameResultParams, 0, len(sum.Standings))
	for i, s := range sum.Standings {
		playerID, err := uuid.Parse(s.PlayerID)
		if err != nil {
			return fmt.Errorf("standing %d: invalid player id %q: %w", i+1, s.PlayerID, err)
		}
		rows = append(rows, store.InsertGameResultParams{
			GameID:   gameID,
			Position: int32(i + 1),
			PlayerID: pgtype.UUID{Bytes: playerID, Valid: true},
			Nickname: s.Nickname,
			Score:    int32(s.Score),
		})
	}

	game := store.InsertGameParams{
		GameID:        gameID,
		RoomCode:      sum.RoomID,
		Title:         sum.Title,
		QuestionCount: int32(sum.QuestionCount),
		PlayerCount:   int32(len(sum.Standings)),
		StartedAt:     timestamptz(sum.StartedAt),
		FinishedAt:    timestamptz(sum.FinishedAt),
	}
	if err := r.store.SaveGame(ctx, game, rows); err != nil {
		return fmt.Errorf("save game %s: %w", sum.GameID, err)
	}
	return nil
}

// ListRecent returns the most recently finished games with their standings.
func (r *GameRepository) ListRecent(ctx context.Context, limit int) ([]results.Summary, error) {
	games, err := r.store.ListRecentGames(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("list recent games: %w", err)
	}
	if len(games) == 0 {
		return []results.Summary{}, nil
	}

	ids := make([]pgtype.UUID, len(games))
	for i, g := range games {
		ids[i] = g.GameID
	}
	rows, err := r.store.ListGameResults(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list game results: %w", err)
	}

	standings := make(map[[16]byte][]ws.Standing, len(games))
	for _, row := range rows {
		standings[row.GameID.Bytes] = append(standings[row.GameID.Bytes], ws.Standing{
			PlayerID: uuid.UUID(row.PlayerID.Bytes).String(),
			Nickname: row.Nickname,
			Score:    int(row.Score),
		})
	}

	out := make([]results.Summary, len(games))
	for i, g := range games {
		board := standings[g.GameID.Bytes]
		if board == nil {
			board = []ws.Standing{}
		}
		out[i] = results.Summary{
			GameID:        uuid.UUID(g.GameID.Bytes),
			RoomID:        g.RoomCode,
			Title:         g.Title,
			QuestionCount: int(g.QuestionCount),
			StartedAt:     g.StartedAt.Time,
			FinishedAt:    g.FinishedAt.Time,
			Standings:     board,
		}
	}
	return out, nil
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}
