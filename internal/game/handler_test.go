package game

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/numquiz/internal/game/scoring"
	"github.com/gokatarajesh/numquiz/internal/results"
	ws "github.com/gokatarajesh/numquiz/pkg/http/ws"
)

type fakeHub struct {
	mu       sync.Mutex
	rooms    map[string][]string
	inbox    map[string][]ws.Message
	unregged []string
}

func newFakeHub() *fakeHub {
	return &fakeHub{rooms: make(map[string][]string), inbox: make(map[string][]ws.Message)}
}

func (f *fakeHub) RegisterConnection(string, *ws.Connection) {}

func (f *fakeHub) UnregisterConnection(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unregged = append(f.unregged, connID)
	for room := range f.rooms {
		f.removeLocked(room, connID)
	}
}

func (f *fakeHub) JoinRoom(roomID, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[roomID] = append(f.rooms[roomID], connID)
}

func (f *fakeHub) LeaveRoom(roomID, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(roomID, connID)
}

func (f *fakeHub) removeLocked(roomID, connID string) {
	members := f.rooms[roomID]
	for i, m := range members {
		if m == connID {
			f.rooms[roomID] = append(members[:i:i], members[i+1:]...)
			return
		}
	}
}

func (f *fakeHub) CloseRoom(roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, roomID)
}

func (f *fakeHub) BroadcastToRoom(roomID string, msg ws.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, connID := range f.rooms[roomID] {
		f.inbox[connID] = append(f.inbox[connID], msg)
	}
	return nil
}

func (f *fakeHub) SendToConnection(connID string, msg ws.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbox[connID] = append(f.inbox[connID], msg)
	return nil
}

// drain returns and clears everything delivered to connID.
func (f *fakeHub) drain(connID string) []ws.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.inbox[connID]
	delete(f.inbox, connID)
	return msgs
}

type fakeRecorder struct {
	summaries []results.Summary
}

func (r *fakeRecorder) Submit(sum results.Summary) bool {
	r.summaries = append(r.summaries, sum)
	return true
}

type handlerFixture struct {
	handler  *Handler
	hub      *fakeHub
	registry *Registry
	recorder *fakeRecorder
}

func newHandlerFixture(t *testing.T, publicBaseURL string) *handlerFixture {
	t.Helper()
	hub := newFakeHub()
	registry := newTestRegistry(RegistryOptions{MinPlayersToStart: 1})
	recorder := &fakeRecorder{}
	h := NewHandler(
		registry,
		hub,
		scoring.NewEngine(scoring.DefaultScoringConfig()),
		recorder,
		nil,
		HandlerOptions{PublicBaseURL: publicBaseURL},
		zerolog.New(io.Discard),
	)
	return &handlerFixture{handler: h, hub: hub, registry: registry, recorder: recorder}
}

func (f *handlerFixture) connect(connIDs ...string) {
	for _, id := range connIDs {
		f.handler.handleConnect(id, "http://quiz.local")
	}
}

func (f *handlerFixture) send(t *testing.T, connID, msgType string, payload any) {
	t.Helper()
	msg, err := ws.NewMessage(msgType, payload, "req-"+msgType)
	require.NoError(t, err)
	f.handler.handleMessage(context.Background(), connID, msg)
}

func (f *handlerFixture) sendRaw(connID, msgType, payload string) {
	f.handler.handleMessage(context.Background(), connID, ws.Message{Type: msgType, Payload: json.RawMessage(payload)})
}

func (f *handlerFixture) createRoom(t *testing.T, hostConn, quizJSON string) string {
	t.Helper()
	f.send(t, hostConn, ws.TypeCreateRoom, map[string]json.RawMessage{"quiz": json.RawMessage(quizJSON)})
	msgs := f.hub.drain(hostConn)
	require.Len(t, msgs, 1)
	require.Equal(t, ws.TypeRoomCreated, msgs[0].Type, string(msgs[0].Payload))

	var created ws.RoomCreatedPayload
	decode(t, msgs[0], &created)
	return created.RoomID
}

func decode(t *testing.T, msg ws.Message, into any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(msg.Payload, into))
}

func lastOfType(msgs []ws.Message, msgType string) (ws.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == msgType {
			return msgs[i], true
		}
	}
	return ws.Message{}, false
}

func requireError(t *testing.T, msgs []ws.Message, code string) ws.ErrorPayload {
	t.Helper()
	msg, ok := lastOfType(msgs, ws.TypeError)
	require.True(t, ok, "expected an error message, got %v", msgs)
	var payload ws.ErrorPayload
	decode(t, msg, &payload)
	assert.Equal(t, code, payload.Code)
	return payload
}

const oneQuestionQuiz = `{"title":"Numbers","questions":[{"id":1,"text":"Q1","answer":100}]}`

func TestHandler_FullGame(t *testing.T) {
	f := newHandlerFixture(t, "")
	f.connect("host", "alice", "bob")

	f.send(t, "host", ws.TypeCreateRoom, map[string]json.RawMessage{"quiz": json.RawMessage(oneQuestionQuiz)})
	msgs := f.hub.drain("host")
	require.Len(t, msgs, 1)
	assert.Equal(t, "req-create_room", msgs[0].RequestID)
	var created ws.RoomCreatedPayload
	decode(t, msgs[0], &created)
	roomID := created.RoomID
	assert.Equal(t, "Numbers", created.Title)
	assert.Equal(t, 1, created.QuestionCount)
	assert.Equal(t, "http://quiz.local/join/"+roomID, created.JoinURL)

	f.send(t, "alice", ws.TypeJoinRoom, ws.JoinRoomPayload{RoomID: roomID, Nickname: "A"})
	f.send(t, "bob", ws.TypeJoinRoom, ws.JoinRoomPayload{RoomID: roomID, Nickname: "B"})

	var joined ws.JoinResultPayload
	aliceMsgs := f.hub.drain("alice")
	require.Len(t, aliceMsgs, 1)
	decode(t, aliceMsgs[0], &joined)
	assert.True(t, joined.Success)
	assert.Equal(t, roomID, joined.RoomID)
	assert.NotEmpty(t, joined.PlayerID)
	f.hub.drain("bob")

	hostMsgs := f.hub.drain("host")
	list, ok := lastOfType(hostMsgs, ws.TypePlayerList)
	require.True(t, ok)
	var players ws.PlayerListPayload
	decode(t, list, &players)
	require.Len(t, players.Players, 2)
	assert.Equal(t, "A", players.Players[0].Nickname)
	assert.Equal(t, "B", players.Players[1].Nickname)

	f.send(t, "host", ws.TypeStartGame, ws.RoomPayload{RoomID: roomID})
	for _, conn := range []string{"host", "alice", "bob"} {
		msgs := f.hub.drain(conn)
		require.Len(t, msgs, 1, conn)
		assert.Equal(t, ws.TypeQuestion, msgs[0].Type)
		assert.NotContains(t, string(msgs[0].Payload), "answer")
		var q ws.QuestionPayload
		decode(t, msgs[0], &q)
		assert.Equal(t, ws.QuestionPayload{RoomID: roomID, QuestionIndex: 0, Text: "Q1", TotalQuestions: 1}, q)
	}

	f.send(t, "alice", ws.TypeSubmitAnswer, map[string]any{"room_id": roomID, "answer": 80})
	f.send(t, "bob", ws.TypeSubmitAnswer, map[string]any{"room_id": roomID, "answer": 130})
	ack, ok := lastOfType(f.hub.drain("alice"), ws.TypeAnswerAck)
	require.True(t, ok)
	assert.Equal(t, "req-submit_answer", ack.RequestID)
	f.hub.drain("bob")

	counts := f.hub.drain("host")
	require.Len(t, counts, 2)
	var count ws.AnswersCountPayload
	decode(t, counts[1], &count)
	assert.Equal(t, ws.AnswersCountPayload{RoomID: roomID, QuestionIndex: 0, Received: 2, Total: 2}, count)

	f.send(t, "host", ws.TypeRevealAnswer, ws.RoomPayload{RoomID: roomID})
	var result ws.AnswerResultPayload
	for _, conn := range []string{"host", "alice", "bob"} {
		msgs := f.hub.drain(conn)
		require.Len(t, msgs, 1, conn)
		require.Equal(t, ws.TypeAnswerResult, msgs[0].Type)
		decode(t, msgs[0], &result)
	}
	assert.Equal(t, 100.0, result.CorrectAnswer)
	require.Len(t, result.Scores, 2)
	assert.Equal(t, "A", result.Scores[0].Nickname)
	assert.Equal(t, 20.0, result.Scores[0].Diff)
	assert.Equal(t, 1, result.Scores[0].PointsEarned)
	assert.Equal(t, 30.0, result.Scores[1].Diff)
	assert.Equal(t, 0, result.Scores[1].PointsEarned)
	require.Len(t, result.Leaderboard, 2)
	assert.Equal(t, "A", result.Leaderboard[0].Nickname)
	assert.Equal(t, 1, result.Leaderboard[0].Score)
	assert.Equal(t, "B", result.Leaderboard[1].Nickname)
	assert.Equal(t, 0, result.Leaderboard[1].Score)

	f.send(t, "host", ws.TypeNextQuestion, ws.RoomPayload{RoomID: roomID})
	final, ok := lastOfType(f.hub.drain("bob"), ws.TypeFinalLeaderboard)
	require.True(t, ok)
	var board ws.FinalLeaderboardPayload
	decode(t, final, &board)
	assert.Equal(t, []ws.Standing{
		{PlayerID: result.Leaderboard[0].PlayerID, Nickname: "A", Score: 1},
		{PlayerID: result.Leaderboard[1].PlayerID, Nickname: "B", Score: 0},
	}, board.Leaderboard)

	sess, ok := f.registry.Get(roomID)
	require.True(t, ok)
	assert.Equal(t, StatusFinished, sess.Status())

	require.Len(t, f.recorder.summaries, 1)
	sum := f.recorder.summaries[0]
	assert.Equal(t, roomID, sum.RoomID)
	assert.Equal(t, sess.GameID, sum.GameID)
	assert.Equal(t, board.Leaderboard, sum.Standings)

	f.hub.drain("host")
	f.hub.drain("alice")
	f.hub.drain("bob")
	f.send(t, "host", ws.TypeStartGame, ws.RoomPayload{RoomID: roomID})
	hostMsgs = f.hub.drain("host")
	requireError(t, hostMsgs, "invalid_state")
	_, restarted := lastOfType(hostMsgs, ws.TypeQuestion)
	assert.False(t, restarted)
	assert.Empty(t, f.hub.drain("alice"))
	assert.Empty(t, f.hub.drain("bob"))
	assert.Equal(t, StatusFinished, sess.Status())
	assert.Len(t, f.recorder.summaries, 1)
}

func TestHandler_HostDisconnectClosesRoom(t *testing.T) {
	f := newHandlerFixture(t, "https://play.example")
	f.connect("host", "alice", "bob")
	roomID := f.createRoom(t, "host", oneQuestionQuiz)

	f.send(t, "alice", ws.TypeJoinRoom, ws.JoinRoomPayload{RoomID: roomID, Nickname: "A"})
	f.send(t, "bob", ws.TypeJoinRoom, ws.JoinRoomPayload{RoomID: roomID, Nickname: "B"})
	f.hub.drain("alice")
	f.hub.drain("bob")

	f.handler.handleDisconnect(context.Background(), "host")

	for _, conn := range []string{"alice", "bob"} {
		msg, ok := lastOfType(f.hub.drain(conn), ws.TypeHostDisconnected)
		require.True(t, ok, conn)
		var payload ws.HostDisconnectedPayload
		decode(t, msg, &payload)
		assert.Equal(t, roomID, payload.RoomID)
	}

	_, ok := f.registry.Get(roomID)
	assert.False(t, ok)
	assert.Contains(t, f.hub.unregged, "host")

	f.send(t, "alice", ws.TypeSubmitAnswer, map[string]any{"room_id": roomID, "answer": 1})
	requireError(t, f.hub.drain("alice"), "room_not_found")
}

func TestHandler_PlayerDisconnectUpdatesHost(t *testing.T) {
	f := newHandlerFixture(t, "")
	f.connect("host", "alice", "bob")
	roomID := f.createRoom(t, "host", oneQuestionQuiz)

	f.send(t, "alice", ws.TypeJoinRoom, ws.JoinRoomPayload{RoomID: roomID, Nickname: "A"})
	f.send(t, "bob", ws.TypeJoinRoom, ws.JoinRoomPayload{RoomID: roomID, Nickname: "B"})
	f.hub.drain("host")

	f.handler.handleDisconnect(context.Background(), "alice")

	list, ok := lastOfType(f.hub.drain("host"), ws.TypePlayerList)
	require.True(t, ok)
	var players ws.PlayerListPayload
	decode(t, list, &players)
	require.Len(t, players.Players, 1)
	assert.Equal(t, "B", players.Players[0].Nickname)

	sess, ok := f.registry.Get(roomID)
	require.True(t, ok)
	assert.Equal(t, 1, sess.PlayerCount())

	// The nickname is free again.
	f.connect("carol")
	f.send(t, "carol", ws.TypeJoinRoom, ws.JoinRoomPayload{RoomID: roomID, Nickname: "A"})
	msg, ok := lastOfType(f.hub.drain("carol"), ws.TypeJoinResult)
	require.True(t, ok)
	var joined ws.JoinResultPayload
	decode(t, msg, &joined)
	assert.True(t, joined.Success)
}

func TestHandler_HostFencing(t *testing.T) {
	f := newHandlerFixture(t, "")
	f.connect("host", "alice", "mallory")
	roomID := f.createRoom(t, "host", oneQuestionQuiz)
	f.send(t, "alice", ws.TypeJoinRoom, ws.JoinRoomPayload{RoomID: roomID, Nickname: "A"})
	f.hub.drain("alice")

	for _, msgType := range []string{ws.TypeStartGame, ws.TypeNextQuestion, ws.TypeRevealAnswer} {
		f.send(t, "mallory", msgType, ws.RoomPayload{RoomID: roomID})
		errMsg := requireError(t, f.hub.drain("mallory"), "not_host")
		assert.NotEmpty(t, errMsg.Message)

		f.send(t, "alice", msgType, ws.RoomPayload{RoomID: roomID})
		requireError(t, f.hub.drain("alice"), "not_host")
	}

	sess, ok := f.registry.Get(roomID)
	require.True(t, ok)
	assert.Equal(t, StatusWaiting, sess.Status())
}

func TestHandler_JoinRejections(t *testing.T) {
	f := newHandlerFixture(t, "")
	f.connect("host", "alice", "bob", "carol")
	roomID := f.createRoom(t, "host", oneQuestionQuiz)

	f.send(t, "alice", ws.TypeJoinRoom, ws.JoinRoomPayload{RoomID: roomID, Nickname: "A"})
	f.hub.drain("alice")

	tests := map[string]struct {
		connID  string
		payload ws.JoinRoomPayload
		message string
	}{
		"unknown room":   {connID: "bob", payload: ws.JoinRoomPayload{RoomID: "ZZZZZZ", Nickname: "B"}, message: "Room not found"},
		"duplicate name": {connID: "bob", payload: ws.JoinRoomPayload{RoomID: roomID, Nickname: "A"}, message: "Nickname already taken"},
		"host joins":     {connID: "host", payload: ws.JoinRoomPayload{RoomID: roomID, Nickname: "H"}, message: ErrHostCannotJoin.Message},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f.send(t, tc.connID, ws.TypeJoinRoom, tc.payload)
			msg, ok := lastOfType(f.hub.drain(tc.connID), ws.TypeJoinResult)
			require.True(t, ok)
			var res ws.JoinResultPayload
			decode(t, msg, &res)
			assert.False(t, res.Success)
			assert.Equal(t, tc.message, res.Message)
		})
	}

	f.send(t, "host", ws.TypeStartGame, ws.RoomPayload{RoomID: roomID})
	f.send(t, "carol", ws.TypeJoinRoom, ws.JoinRoomPayload{RoomID: roomID, Nickname: "C"})
	msg, ok := lastOfType(f.hub.drain("carol"), ws.TypeJoinResult)
	require.True(t, ok)
	var res ws.JoinResultPayload
	decode(t, msg, &res)
	assert.False(t, res.Success)
	assert.Equal(t, "Game already in progress", res.Message)

	f.sendRaw("carol", ws.TypeJoinRoom, `"oops"`)
	requireError(t, f.hub.drain("carol"), "invalid_payload")
}

func TestHandler_SubmitAnswerRejections(t *testing.T) {
	f := newHandlerFixture(t, "")
	f.connect("host", "alice", "stranger")
	roomID := f.createRoom(t, "host", `{"title":"T","questions":[{"id":1,"text":"Q1","answer":5},{"id":2,"text":"Q2","answer":6}]}`)
	f.send(t, "alice", ws.TypeJoinRoom, ws.JoinRoomPayload{RoomID: roomID, Nickname: "A"})

	f.send(t, "alice", ws.TypeSubmitAnswer, map[string]any{"room_id": roomID, "answer": 1})
	requireError(t, f.hub.drain("alice"), "invalid_state")

	f.send(t, "host", ws.TypeStartGame, ws.RoomPayload{RoomID: roomID})
	f.hub.drain("host")

	f.send(t, "stranger", ws.TypeSubmitAnswer, map[string]any{"room_id": roomID, "answer": 1})
	requireError(t, f.hub.drain("stranger"), "not_player")

	f.send(t, "alice", ws.TypeSubmitAnswer, map[string]any{"room_id": roomID})
	requireError(t, f.hub.drain("alice"), "invalid_answer")

	f.sendRaw("alice", ws.TypeSubmitAnswer, `{"room_id":"`+roomID+`","answer":"ten"}`)
	requireError(t, f.hub.drain("alice"), "invalid_payload")

	f.send(t, "alice", ws.TypeSubmitAnswer, map[string]any{"room_id": roomID, "answer": 4})
	f.send(t, "alice", ws.TypeSubmitAnswer, map[string]any{"room_id": roomID, "answer": 7})
	requireError(t, f.hub.drain("alice"), "already_answered")

	// Only the first answer reached the host.
	counts := f.hub.drain("host")
	require.Len(t, counts, 1)
	assert.Equal(t, ws.TypeAnswersCount, counts[0].Type)

	sess, _ := f.registry.Get(roomID)
	require.Len(t, sess.Answers(0), 1)
	assert.Equal(t, 4.0, sess.Answers(0)[0].Value)
}

func TestHandler_RevealRequiresAnswers(t *testing.T) {
	f := newHandlerFixture(t, "")
	f.connect("host", "alice")
	roomID := f.createRoom(t, "host", oneQuestionQuiz)

	f.send(t, "host", ws.TypeStartGame, ws.RoomPayload{RoomID: roomID})
	requireError(t, f.hub.drain("host"), "not_enough_players")

	f.send(t, "alice", ws.TypeJoinRoom, ws.JoinRoomPayload{RoomID: roomID, Nickname: "A"})
	f.send(t, "host", ws.TypeStartGame, ws.RoomPayload{RoomID: roomID})
	f.hub.drain("host")

	f.send(t, "host", ws.TypeRevealAnswer, ws.RoomPayload{RoomID: roomID})
	errMsg := requireError(t, f.hub.drain("host"), "no_answers")
	assert.Equal(t, "No answers received yet", errMsg.Message)
}

func TestHandler_CreateRoomValidation(t *testing.T) {
	f := newHandlerFixture(t, "")
	f.connect("host")

	f.send(t, "host", ws.TypeCreateRoom, map[string]json.RawMessage{"quiz": json.RawMessage(`{"title":"T","questions":[]}`)})
	errMsg := requireError(t, f.hub.drain("host"), "invalid_quiz")
	assert.Equal(t, "Quiz must have a non-empty questions array", errMsg.Message)

	f.sendRaw("host", ws.TypeCreateRoom, `{}`)
	requireError(t, f.hub.drain("host"), "invalid_payload")
	assert.Equal(t, 0, f.registry.Len())
}

func TestHandler_PingAndUnknown(t *testing.T) {
	f := newHandlerFixture(t, "")
	f.connect("c1")

	f.send(t, "c1", ws.TypePing, nil)
	msgs := f.hub.drain("c1")
	require.Len(t, msgs, 1)
	assert.Equal(t, ws.TypePong, msgs[0].Type)
	assert.Equal(t, "req-ping", msgs[0].RequestID)

	f.send(t, "c1", "launch_rockets", nil)
	errMsg := requireError(t, f.hub.drain("c1"), "unknown_message_type")
	assert.Contains(t, errMsg.Message, "launch_rockets")
}

func TestHandler_RunProcessesQueue(t *testing.T) {
	f := newHandlerFixture(t, "")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.handler.Run(ctx) }()

	require.True(t, f.handler.enqueue(inbound{kind: eventConnect, connID: "c1", baseURL: "http://x"}))
	require.True(t, f.handler.Enqueue("c1", ws.Message{Type: ws.TypePing}))
	require.Eventually(t, func() bool {
		f.hub.mu.Lock()
		defer f.hub.mu.Unlock()
		return len(f.hub.inbox["c1"]) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.False(t, f.handler.Enqueue("c1", ws.Message{Type: ws.TypePing}))
}
