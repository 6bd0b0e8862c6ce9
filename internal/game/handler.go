package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/numquiz/internal/game/scoring"
	"github.com/gokatarajesh/numquiz/internal/metrics"
	"github.com/gokatarajesh/numquiz/internal/quiz"
	"github.com/gokatarajesh/numquiz/internal/results"
	httperrors "github.com/gokatarajesh/numquiz/pkg/http/errors"
	ws "github.com/gokatarajesh/numquiz/pkg/http/ws"
)

// Broadcaster delivers events to connections and room broadcast groups.
type Broadcaster interface {
	RegisterConnection(connID string, conn *ws.Connection)
	UnregisterConnection(connID string)
	JoinRoom(roomID, connID string)
	LeaveRoom(roomID, connID string)
	CloseRoom(roomID string)
	BroadcastToRoom(roomID string, msg ws.Message) error
	SendToConnection(connID string, msg ws.Message) error
}

// ResultRecorder receives summaries of finished games. Submit must not block.
type ResultRecorder interface {
	Submit(sum results.Summary) bool
}

// HandlerOptions configures the command loop and transport.
type HandlerOptions struct {
	InboxSize     int
	PublicBaseURL string
	Upgrader      websocket.Upgrader
	Connection    ws.ConnectionOptions
}

type role int

const (
	roleHost role = iota + 1
	rolePlayer
)

// connState is the gateway's view of one connection.
type connState struct {
	baseURL string
	rooms   map[string]role
}

type eventKind int

const (
	eventMessage eventKind = iota
	eventConnect
	eventDisconnect
)

type inbound struct {
	kind    eventKind
	connID  string
	msg     ws.Message
	baseURL string
}

// Handler routes websocket commands to sessions. All session mutation happens
// on the goroutine running Run, one event at a time.
type Handler struct {
	registry *Registry
	hub      Broadcaster
	engine   *scoring.Engine
	recorder ResultRecorder
	metrics  *metrics.Collectors
	logger   zerolog.Logger

	inbox   chan inbound
	done    chan struct{}
	conns   map[string]*connState
	baseURL string

	upgrader websocket.Upgrader
	connOpts ws.ConnectionOptions
}

// NewHandler creates a game command handler. recorder may be nil.
func NewHandler(
	registry *Registry,
	hub Broadcaster,
	engine *scoring.Engine,
	recorder ResultRecorder,
	collectors *metrics.Collectors,
	opts HandlerOptions,
	logger zerolog.Logger,
) *Handler {
	size := opts.InboxSize
	if size <= 0 {
		size = 256
	}
	if collectors == nil {
		collectors = metrics.Discard()
	}

	return &Handler{
		registry: registry,
		hub:      hub,
		engine:   engine,
		recorder: recorder,
		metrics:  collectors,
		logger:   logger.With().Str("component", "game_handler").Logger(),
		inbox:    make(chan inbound, size),
		done:     make(chan struct{}),
		conns:    make(map[string]*connState),
		baseURL:  strings.TrimRight(opts.PublicBaseURL, "/"),
		upgrader: opts.Upgrader,
		connOpts: opts.Connection,
	}
}

// Run processes queued events until ctx is cancelled.
func (h *Handler) Run(ctx context.Context) error {
	defer close(h.done)
	h.logger.Info().Msg("game command loop started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Msg("game command loop stopped")
			return nil
		case ev := <-h.inbox:
			switch ev.kind {
			case eventConnect:
				h.handleConnect(ev.connID, ev.baseURL)
			case eventDisconnect:
				h.handleDisconnect(ctx, ev.connID)
			default:
				h.handleMessage(ctx, ev.connID, ev.msg)
			}
		}
	}
}

// Enqueue hands an inbound command to the loop. It reports false once the
// loop has stopped.
func (h *Handler) Enqueue(connID string, msg ws.Message) bool {
	return h.enqueue(inbound{kind: eventMessage, connID: connID, msg: msg})
}

func (h *Handler) enqueue(ev inbound) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.inbox <- ev:
		return true
	case <-h.done:
		return false
	}
}

// handleConnect records a new connection. baseURL is used to build join links
// when no public base URL is configured.
func (h *Handler) handleConnect(connID, baseURL string) {
	h.conns[connID] = &connState{baseURL: strings.TrimRight(baseURL, "/"), rooms: make(map[string]role)}
	h.metrics.Connections.Inc()
}

// handleMessage runs one command to completion. Like every handle method it
// touches conns and sessions unlocked and must only run on the Run goroutine.
func (h *Handler) handleMessage(ctx context.Context, connID string, msg ws.Message) {
	err := h.route(ctx, connID, msg)
	if err == nil {
		h.metrics.Commands.WithLabelValues(msg.Type, metrics.OutcomeOK).Inc()
		return
	}
	h.metrics.Commands.WithLabelValues(commandLabel(msg.Type), metrics.OutcomeRejected).Inc()

	var gameErr *Error
	if msg.Type == ws.TypeJoinRoom && errors.As(err, &gameErr) && gameErr.Code != httperrors.ErrCodeInvalidPayload {
		h.reply(connID, msg.RequestID, ws.TypeJoinResult, ws.JoinResultPayload{Success: false, Message: gameErr.Message})
		return
	}
	h.sendError(connID, msg.RequestID, err)
}

func (h *Handler) route(ctx context.Context, connID string, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeCreateRoom:
		return h.handleCreateRoom(ctx, connID, msg)
	case ws.TypeStartGame:
		return h.handleStartGame(ctx, connID, msg)
	case ws.TypeNextQuestion:
		return h.handleNextQuestion(ctx, connID, msg)
	case ws.TypeRevealAnswer:
		return h.handleRevealAnswer(ctx, connID, msg)
	case ws.TypeJoinRoom:
		return h.handleJoinRoom(ctx, connID, msg)
	case ws.TypeSubmitAnswer:
		return h.handleSubmitAnswer(ctx, connID, msg)
	case ws.TypePing:
		h.reply(connID, msg.RequestID, ws.TypePong, nil)
		return nil
	default:
		return &Error{
			Kind:    KindValidation,
			Code:    httperrors.ErrCodeUnknownMessageType,
			Message: fmt.Sprintf("Unknown message type: %s", msg.Type),
		}
	}
}

func (h *Handler) handleCreateRoom(_ context.Context, connID string, msg ws.Message) error {
	var req ws.CreateRoomPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil || len(req.Quiz) == 0 {
		return errInvalidPayload("Invalid create_room payload")
	}

	q, err := quiz.Parse(req.Quiz)
	if err != nil {
		var verr *quiz.ValidationError
		if errors.As(err, &verr) {
			return &Error{Kind: KindValidation, Code: httperrors.ErrCodeInvalidQuiz, Message: verr.Message}
		}
		return err
	}

	sess, err := h.registry.Create(connID, q)
	if err != nil {
		h.logger.Error().Err(err).Msg("room creation failed")
		return &Error{Kind: KindState, Code: httperrors.ErrCodeRoomCreationFailed, Message: "Could not create room"}
	}

	h.hub.JoinRoom(sess.ID, connID)
	h.track(connID, sess.ID, roleHost)
	h.metrics.RoomsCreated.Inc()
	h.metrics.ActiveRooms.Set(float64(h.registry.Len()))

	h.reply(connID, msg.RequestID, ws.TypeRoomCreated, ws.RoomCreatedPayload{
		RoomID:        sess.ID,
		Title:         q.Title,
		QuestionCount: q.Len(),
		JoinURL:       h.joinURL(connID, sess.ID),
	})
	return nil
}

func (h *Handler) handleStartGame(_ context.Context, connID string, msg ws.Message) error {
	sess, err := h.lookup(msg.Payload, ws.TypeStartGame)
	if err != nil {
		return err
	}

	view, err := sess.Start(connID)
	if err != nil {
		return err
	}

	h.logger.Info().
		Str("room_id", sess.ID).
		Int("players", sess.PlayerCount()).
		Msg("game started")
	h.broadcastQuestion(sess.ID, view)
	return nil
}

func (h *Handler) handleNextQuestion(_ context.Context, connID string, msg ws.Message) error {
	sess, err := h.lookup(msg.Payload, ws.TypeNextQuestion)
	if err != nil {
		return err
	}

	res, err := sess.Advance(connID)
	if err != nil {
		return err
	}

	if !res.Finished {
		h.broadcastQuestion(sess.ID, res.Question)
		return nil
	}

	board := toWSStandings(res.Leaderboard)
	h.broadcast(sess.ID, ws.TypeFinalLeaderboard, ws.FinalLeaderboardPayload{
		RoomID:      sess.ID,
		Leaderboard: board,
	})
	h.metrics.GamesFinished.Inc()
	h.logger.Info().
		Str("room_id", sess.ID).
		Str("game_id", sess.GameID.String()).
		Int("players", len(board)).
		Msg("game finished")

	if h.recorder != nil {
		h.recorder.Submit(results.Summary{
			GameID:        sess.GameID,
			RoomID:        sess.ID,
			Title:         sess.Quiz.Title,
			QuestionCount: sess.Quiz.Len(),
			StartedAt:     sess.StartedAt(),
			FinishedAt:    sess.FinishedAt(),
			Standings:     board,
		})
	}
	return nil
}

func (h *Handler) handleRevealAnswer(_ context.Context, connID string, msg ws.Message) error {
	sess, err := h.lookup(msg.Payload, ws.TypeRevealAnswer)
	if err != nil {
		return err
	}

	res, err := sess.Reveal(connID, h.engine)
	if err != nil {
		return err
	}

	scores := make([]ws.ScoreLine, len(res.Scores))
	for i, line := range res.Scores {
		scores[i] = ws.ScoreLine{
			PlayerID:     line.PlayerID.String(),
			Nickname:     line.Nickname,
			Answer:       line.Answer,
			Diff:         line.Diff,
			PointsEarned: line.PointsEarned,
		}
	}

	h.broadcast(sess.ID, ws.TypeAnswerResult, ws.AnswerResultPayload{
		RoomID:        sess.ID,
		QuestionIndex: res.QuestionIndex,
		CorrectAnswer: res.CorrectAnswer,
		Scores:        scores,
		Leaderboard:   toWSStandings(res.Leaderboard),
	})
	return nil
}

func (h *Handler) handleJoinRoom(_ context.Context, connID string, msg ws.Message) error {
	var req ws.JoinRoomPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return errInvalidPayload("Invalid join_room payload")
	}

	sess, ok := h.registry.Get(req.RoomID)
	if !ok {
		return ErrRoomNotFound
	}

	player, err := sess.Join(connID, req.Nickname)
	if err != nil {
		return err
	}

	h.hub.JoinRoom(sess.ID, connID)
	h.track(connID, sess.ID, rolePlayer)
	h.metrics.PlayersJoined.Inc()

	h.logger.Info().
		Str("room_id", sess.ID).
		Str("player_id", player.PlayerID.String()).
		Str("nickname", player.Nickname).
		Int("player_count", sess.PlayerCount()).
		Msg("player joined room")

	h.reply(connID, msg.RequestID, ws.TypeJoinResult, ws.JoinResultPayload{
		Success:  true,
		RoomID:   sess.ID,
		PlayerID: player.PlayerID.String(),
		Nickname: player.Nickname,
	})
	h.sendPlayerList(sess)
	return nil
}

func (h *Handler) handleSubmitAnswer(_ context.Context, connID string, msg ws.Message) error {
	var req ws.SubmitAnswerPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return errInvalidPayload("Invalid submit_answer payload")
	}
	if req.Answer == nil {
		return ErrInvalidAnswer
	}

	sess, ok := h.registry.Get(req.RoomID)
	if !ok {
		return ErrRoomNotFound
	}

	progress, err := sess.SubmitAnswer(connID, *req.Answer)
	if err != nil {
		return err
	}
	h.metrics.AnswersSubmitted.Inc()

	h.reply(connID, msg.RequestID, ws.TypeAnswerAck, ws.AnswerAckPayload{
		RoomID:        sess.ID,
		QuestionIndex: progress.QuestionIndex,
	})
	h.sendToHost(sess, ws.TypeAnswersCount, ws.AnswersCountPayload{
		RoomID:        sess.ID,
		QuestionIndex: progress.QuestionIndex,
		Received:      progress.Received,
		Total:         progress.Total,
	})
	return nil
}

// handleDisconnect removes connID from every room it belongs to. A departing
// host ends the room for everyone in it.
func (h *Handler) handleDisconnect(_ context.Context, connID string) {
	state, ok := h.conns[connID]
	if ok {
		delete(h.conns, connID)
		h.metrics.Connections.Dec()

		for roomID := range state.rooms {
			sess, exists := h.registry.Get(roomID)
			if !exists {
				continue
			}

			if sess.IsHost(connID) {
				h.broadcast(sess.ID, ws.TypeHostDisconnected, ws.HostDisconnectedPayload{RoomID: sess.ID})
				h.registry.Remove(sess.ID)
				h.hub.CloseRoom(sess.ID)
				h.logger.Info().
					Str("room_id", sess.ID).
					Str("status", string(sess.Status())).
					Int("players", sess.PlayerCount()).
					Msg("host disconnected, room closed")
				continue
			}

			if player, removed := sess.RemovePlayer(connID); removed {
				h.hub.LeaveRoom(sess.ID, connID)
				h.logger.Info().
					Str("room_id", sess.ID).
					Str("player_id", player.PlayerID.String()).
					Msg("player left room")
				h.sendPlayerList(sess)
			}
		}
		h.metrics.ActiveRooms.Set(float64(h.registry.Len()))
	}

	h.hub.UnregisterConnection(connID)
}

// joinURL builds the link players open to join roomID.
func (h *Handler) joinURL(connID, roomID string) string {
	base := h.baseURL
	if base == "" {
		if state, ok := h.conns[connID]; ok {
			base = state.baseURL
		}
	}
	if base == "" {
		return ""
	}
	return base + "/join/" + roomID
}

func (h *Handler) lookup(payload json.RawMessage, msgType string) (*Session, error) {
	var req ws.RoomPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errInvalidPayload(fmt.Sprintf("Invalid %s payload", msgType))
	}
	sess, ok := h.registry.Get(req.RoomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	return sess, nil
}

func (h *Handler) track(connID, roomID string, r role) {
	state, ok := h.conns[connID]
	if !ok {
		state = &connState{rooms: make(map[string]role)}
		h.conns[connID] = state
	}
	state.rooms[roomID] = r
}

func (h *Handler) broadcastQuestion(roomID string, view QuestionView) {
	h.broadcast(roomID, ws.TypeQuestion, ws.QuestionPayload{
		RoomID:         roomID,
		QuestionIndex:  view.Index,
		Text:           view.Text,
		TotalQuestions: view.Total,
	})
}

func (h *Handler) sendPlayerList(sess *Session) {
	h.sendToHost(sess, ws.TypePlayerList, ws.PlayerListPayload{
		RoomID:  sess.ID,
		Players: toWSStandings(sess.PlayerList()),
	})
}

func (h *Handler) broadcast(roomID, msgType string, payload any) {
	msg, err := ws.NewMessage(msgType, payload, "")
	if err != nil {
		h.logger.Error().Err(err).Str("type", msgType).Msg("encode broadcast failed")
		return
	}
	if err := h.hub.BroadcastToRoom(roomID, msg); err != nil {
		h.logger.Debug().Err(err).Str("room_id", roomID).Str("type", msgType).Msg("broadcast incomplete")
	}
}

func (h *Handler) sendToHost(sess *Session, msgType string, payload any) {
	h.reply(sess.HostConnID, "", msgType, payload)
}

func (h *Handler) reply(connID, requestID, msgType string, payload any) {
	msg, err := ws.NewMessage(msgType, payload, requestID)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msgType).Msg("encode reply failed")
		return
	}
	if err := h.hub.SendToConnection(connID, msg); err != nil {
		h.logger.Debug().Err(err).Str("conn_id", connID).Str("type", msgType).Msg("send failed")
	}
}

func (h *Handler) sendError(connID, requestID string, err error) {
	payload := ws.ErrorPayload{Code: httperrors.ErrCodeInternalError, Message: "Internal error"}

	var gameErr *Error
	if errors.As(err, &gameErr) {
		payload = ws.ErrorPayload{Code: gameErr.Code, Message: gameErr.Message}
		h.logger.Debug().Str("conn_id", connID).Str("code", gameErr.Code).Msg("command rejected")
	} else {
		h.logger.Error().Err(err).Str("conn_id", connID).Msg("command failed")
	}

	h.reply(connID, requestID, ws.TypeError, payload)
}

func toWSStandings(board []Standing) []ws.Standing {
	out := make([]ws.Standing, len(board))
	for i, s := range board {
		out[i] = ws.Standing{PlayerID: s.PlayerID.String(), Nickname: s.Nickname, Score: s.Score}
	}
	return out
}

// commandLabel bounds metric cardinality for unknown command types.
func commandLabel(msgType string) string {
	switch msgType {
	case ws.TypeCreateRoom, ws.TypeStartGame, ws.TypeNextQuestion, ws.TypeRevealAnswer,
		ws.TypeJoinRoom, ws.TypeSubmitAnswer, ws.TypePing:
		return msgType
	default:
		return "unknown"
	}
}
