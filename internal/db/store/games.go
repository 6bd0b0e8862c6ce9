package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const insertGame = `
INSERT INTO games (game_id, room_code, title, question_count, player_count, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (game_id) DO NOTHING
`

type InsertGameParams struct {
	GameID        pgtype.UUID
	RoomCode      string
	Title         string
	QuestionCount int32
	PlayerCount   int32
	StartedAt     pgtype.Timestamptz
	FinishedAt    pgtype.Timestamptz
}

const insertGameResult = `
INSERT INTO game_results (game_id, position, player_id, nickname, score)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (game_id, position) DO NOTHING
`

type InsertGameResultParams struct {
	GameID   pgtype.UUID
	Position int32
	PlayerID pgtype.UUID
	Nickname string
	Score    int32
}

// SaveGame inserts a game and its standings in one batch. The batch runs in
// an implicit transaction, so either every row lands or none does.
func (q *Queries) SaveGame(ctx context.Context, game InsertGameParams, rows []InsertGameResultParams) error {
	batch := &pgx.Batch{}
	batch.Queue(insertGame,
		game.GameID,
		game.RoomCode,
		game.Title,
		game.QuestionCount,
		game.PlayerCount,
		game.StartedAt,
		game.FinishedAt,
	)
	for _, row := range rows {
		batch.Queue(insertGameResult,
			row.GameID,
			row.Position,
			row.PlayerID,
			row.Nickname,
			row.Score,
		)
	}

	br := q.db.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("save game statement %d: %w", i, err)
		}
	}
	return br.Close()
}

const listRecentGames = `
SELECT game_id, room_code, title, question_count, player_count, started_at, finished_at
FROM games
ORDER BY finished_at DESC
LIMIT $1
`

func (q *Queries) ListRecentGames(ctx context.Context, limit int32) ([]Game, error) {
	rows, err := q.db.Query(ctx, listRecentGames, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Game
	for rows.Next() {
		var i Game
		if err := rows.Scan(
			&i.GameID,
			&i.RoomCode,
			&i.Title,
			&i.QuestionCount,
			&i.PlayerCount,
			&i.StartedAt,
			&i.FinishedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listGameResults = `
SELECT game_id, position, player_id, nickname, score
FROM game_results
WHERE game_id = ANY($1::uuid[])
ORDER BY game_id, position
`

func (q *Queries) ListGameResults(ctx context.Context, gameIDs []pgtype.UUID) ([]GameResult, error) {
	rows, err := q.db.Query(ctx, listGameResults, gameIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []GameResult
	for rows.Next() {
		var i GameResult
		if err := rows.Scan(
			&i.GameID,
			&i.Position,
			&i.PlayerID,
			&i.Nickname,
			&i.Score,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
