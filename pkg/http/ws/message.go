package ws

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server (host)
	TypeCreateRoom   = "create_room"
	TypeStartGame    = "start_game"
	TypeNextQuestion = "next_question"
	TypeRevealAnswer = "reveal_answer"

	// Client -> Server (player)
	TypeJoinRoom     = "join_room"
	TypeSubmitAnswer = "submit_answer"

	// Server -> Client
	TypeRoomCreated      = "room_created"
	TypeQuestion         = "question"
	TypeAnswerResult     = "answer_result"
	TypeFinalLeaderboard = "final_leaderboard"
	TypePlayerList       = "player_list"
	TypeAnswersCount     = "answers_count"
	TypeJoinResult       = "join_result"
	TypeAnswerAck        = "answer_ack"
	TypeHostDisconnected = "host_disconnected"
	TypeError            = "error"
	TypePing             = "ping"
	TypePong             = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// ErrMissingType is returned for envelopes without a type tag.
var ErrMissingType = errors.New("message type is required")

// DecodeMessage parses an inbound frame into an envelope.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if msg.Type == "" {
		return Message{}, ErrMissingType
	}
	return msg, nil
}

// NewMessage builds an outbound envelope. A nil payload is omitted.
func NewMessage(msgType string, payload any, requestID string) (Message, error) {
	msg := Message{Type: msgType, RequestID: requestID}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	msg.Payload = data
	return msg, nil
}

// Client Messages (incoming)

type CreateRoomPayload struct {
	Quiz json.RawMessage `json:"quiz"`
}

// RoomPayload addresses a host command at one room.
type RoomPayload struct {
	RoomID string `json:"room_id"`
}

type JoinRoomPayload struct {
	RoomID   string `json:"room_id"`
	Nickname string `json:"nickname"`
}

type SubmitAnswerPayload struct {
	RoomID string   `json:"room_id"`
	Answer *float64 `json:"answer"`
}

// Server Messages (outgoing)

type RoomCreatedPayload struct {
	RoomID        string `json:"room_id"`
	Title         string `json:"title"`
	QuestionCount int    `json:"question_count"`
	JoinURL       string `json:"join_url,omitempty"`
}

// QuestionPayload never carries the answer.
type QuestionPayload struct {
	RoomID         string `json:"room_id"`
	QuestionIndex  int    `json:"question_index"`
	Text           string `json:"text"`
	TotalQuestions int    `json:"total_questions"`
}

type AnswerResultPayload struct {
	RoomID        string      `json:"room_id"`
	QuestionIndex int         `json:"question_index"`
	CorrectAnswer float64     `json:"correct_answer"`
	Scores        []ScoreLine `json:"scores"`
	Leaderboard   []Standing  `json:"leaderboard"`
}

// ScoreLine is one answer in a round breakdown.
type ScoreLine struct {
	PlayerID     string  `json:"player_id"`
	Nickname     string  `json:"nickname"`
	Answer       float64 `json:"answer"`
	Diff         float64 `json:"diff"`
	PointsEarned int     `json:"points_earned"`
}

// Standing is one leaderboard row.
type Standing struct {
	PlayerID string `json:"player_id,omitempty"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}

type FinalLeaderboardPayload struct {
	RoomID      string     `json:"room_id"`
	Leaderboard []Standing `json:"leaderboard"`
}

type PlayerListPayload struct {
	RoomID  string     `json:"room_id"`
	Players []Standing `json:"players"`
}

type AnswersCountPayload struct {
	RoomID        string `json:"room_id"`
	QuestionIndex int    `json:"question_index"`
	Received      int    `json:"received"`
	Total         int    `json:"total"`
}

type JoinResultPayload struct {
	Success  bool   `json:"success"`
	RoomID   string `json:"room_id,omitempty"`
	PlayerID string `json:"player_id,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Message  string `json:"message,omitempty"`
}

type AnswerAckPayload struct {
	RoomID        string `json:"room_id"`
	QuestionIndex int    `json:"question_index"`
}

type HostDisconnectedPayload struct {
	RoomID string `json:"room_id"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
