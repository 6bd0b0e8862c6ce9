package store

import "github.com/jackc/pgx/v5/pgtype"

type Game struct {
	GameID        pgtype.UUID        `json:"game_id"`
	RoomCode      string             `json:"room_code"`
	Title         string             `json:"title"`
	QuestionCount int32              `json:"question_count"`
	PlayerCount   int32              `json:"player_count"`
	StartedAt     pgtype.Timestamptz `json:"started_at"`
	FinishedAt    pgtype.Timestamptz `json:"finished_at"`
}

type GameResult struct {
	GameID   pgtype.UUID `json:"game_id"`
	Position int32       `json:"position"`
	PlayerID pgtype.UUID `json:"player_id"`
	Nickname string      `json:"nickname"`
	Score    int32       `json:"score"`
}
