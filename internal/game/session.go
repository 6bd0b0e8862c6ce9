package game

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/gokatarajesh/numquiz/internal/game/scoring"
	"github.com/gokatarajesh/numquiz/internal/quiz"
)

// Session is one hosted quiz room. It is not safe for concurrent use; the
// Handler command loop is its only mutator.
type Session struct {
	ID         string
	GameID     uuid.UUID
	HostConnID string
	Quiz       quiz.Quiz
	CreatedAt  time.Time

	status       Status
	currentIndex int
	startedAt    time.Time
	finishedAt   time.Time

	players  []*Player // join order
	byConn   map[string]*Player
	answers  map[int][]Answer
	revealed map[int]bool

	minPlayers int
	clock      clockwork.Clock
}

func newSession(id, hostConnID string, q quiz.Quiz, minPlayers int, clock clockwork.Clock) *Session {
	return &Session{
		ID:           id,
		GameID:       uuid.New(),
		HostConnID:   hostConnID,
		Quiz:         q,
		CreatedAt:    clock.Now(),
		status:       StatusWaiting,
		currentIndex: -1,
		byConn:       make(map[string]*Player),
		answers:      make(map[int][]Answer),
		revealed:     make(map[int]bool),
		minPlayers:   minPlayers,
		clock:        clock,
	}
}

// Status returns the lifecycle state.
func (s *Session) Status() Status { return s.status }

// CurrentIndex returns the active question index, -1 before start.
func (s *Session) CurrentIndex() int { return s.currentIndex }

// StartedAt returns when the game started, zero while waiting.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// FinishedAt returns when the final question was passed, zero until then.
func (s *Session) FinishedAt() time.Time { return s.finishedAt }

// IsHost reports whether connID is the host connection.
func (s *Session) IsHost(connID string) bool {
	return connID != "" && connID == s.HostConnID
}

// PlayerByConn finds a current player by connection id.
func (s *Session) PlayerByConn(connID string) (Player, bool) {
	p, ok := s.byConn[connID]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// PlayerCount returns the number of current players.
func (s *Session) PlayerCount() int {
	return len(s.players)
}

// Players returns a copy of the current players in join order.
func (s *Session) Players() []Player {
	out := make([]Player, len(s.players))
	for i, p := range s.players {
		out[i] = *p
	}
	return out
}

// Answers returns a copy of the answers recorded for a question index.
func (s *Session) Answers(index int) []Answer {
	answers := s.answers[index]
	out := make([]Answer, len(answers))
	copy(out, answers)
	return out
}

// Start moves a waiting session to its first question.
func (s *Session) Start(connID string) (QuestionView, error) {
	if !s.IsHost(connID) {
		return QuestionView{}, ErrNotHost
	}
	if s.status != StatusWaiting {
		return QuestionView{}, ErrAlreadyStarted
	}
	if len(s.players) < s.minPlayers {
		return QuestionView{}, errNotEnoughPlayers(s.minPlayers)
	}

	s.status = StatusInProgress
	s.currentIndex = 0
	s.startedAt = s.clock.Now()
	return s.questionView(), nil
}

// Advance moves to the next question, or finishes the game after the last one.
// Advancing without a reveal is allowed; unrevealed answers earn nothing.
func (s *Session) Advance(connID string) (AdvanceResult, error) {
	if !s.IsHost(connID) {
		return AdvanceResult{}, ErrNotHost
	}
	if s.status != StatusInProgress {
		return AdvanceResult{}, ErrNotInProgress
	}

	s.currentIndex++
	if s.currentIndex >= s.Quiz.Len() {
		s.status = StatusFinished
		s.finishedAt = s.clock.Now()
		return AdvanceResult{Finished: true, Leaderboard: s.Leaderboard()}, nil
	}
	return AdvanceResult{Question: s.questionView()}, nil
}

// Reveal scores the active question once and adds the awards to players that
// are still present.
func (s *Session) Reveal(connID string, engine *scoring.Engine) (RoundResult, error) {
	if !s.IsHost(connID) {
		return RoundResult{}, ErrNotHost
	}
	if s.status != StatusInProgress {
		return RoundResult{}, ErrNotInProgress
	}
	if s.revealed[s.currentIndex] {
		return RoundResult{}, ErrAlreadyRevealed
	}

	answers := s.answers[s.currentIndex]
	if len(answers) == 0 {
		return RoundResult{}, ErrNoAnswers
	}

	question := s.Quiz.Questions[s.currentIndex]
	subs := make([]scoring.Submission, len(answers))
	for i, a := range answers {
		subs[i] = scoring.Submission{PlayerID: a.PlayerID, Value: a.Value}
	}
	outcomes, err := engine.Score(subs, question.Answer)
	if err != nil {
		return RoundResult{}, err
	}

	scores := make([]ScoreLine, len(outcomes))
	for i, o := range outcomes {
		if p := s.playerByID(o.PlayerID); p != nil {
			p.Score += o.PointsEarned
		}
		scores[i] = ScoreLine{
			PlayerID:     o.PlayerID,
			Nickname:     answers[i].Nickname,
			Answer:       o.Value,
			Diff:         o.Diff,
			PointsEarned: o.PointsEarned,
		}
	}
	s.revealed[s.currentIndex] = true

	return RoundResult{
		QuestionIndex: s.currentIndex,
		CorrectAnswer: question.Answer,
		Scores:        scores,
		Leaderboard:   s.Leaderboard(),
	}, nil
}

// Join adds a player while the session is waiting. Nicknames are compared
// exactly after trimming surrounding whitespace.
func (s *Session) Join(connID, nickname string) (Player, error) {
	if s.IsHost(connID) {
		return Player{}, ErrHostCannotJoin
	}
	if s.status != StatusWaiting {
		return Player{}, ErrGameInProgress
	}
	if _, ok := s.byConn[connID]; ok {
		return Player{}, ErrAlreadyJoined
	}

	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return Player{}, ErrNicknameRequired
	}
	for _, p := range s.players {
		if p.Nickname == nickname {
			return Player{}, ErrNicknameTaken
		}
	}

	p := &Player{
		PlayerID: uuid.New(),
		ConnID:   connID,
		Nickname: nickname,
		JoinedAt: s.clock.Now(),
	}
	s.players = append(s.players, p)
	s.byConn[connID] = p
	return *p, nil
}

// SubmitAnswer records the caller's guess for the active question.
func (s *Session) SubmitAnswer(connID string, value float64) (AnswerProgress, error) {
	if s.IsHost(connID) {
		return AnswerProgress{}, ErrNotPlayer
	}
	if s.status != StatusInProgress || s.currentIndex < 0 {
		return AnswerProgress{}, ErrNotInProgress
	}
	p, ok := s.byConn[connID]
	if !ok {
		return AnswerProgress{}, ErrNotPlayer
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return AnswerProgress{}, ErrInvalidAnswer
	}
	if s.revealed[s.currentIndex] {
		return AnswerProgress{}, ErrAnswersClosed
	}
	for _, a := range s.answers[s.currentIndex] {
		if a.PlayerID == p.PlayerID {
			return AnswerProgress{}, ErrAlreadyAnswered
		}
	}

	s.answers[s.currentIndex] = append(s.answers[s.currentIndex], Answer{
		PlayerID:      p.PlayerID,
		Nickname:      p.Nickname,
		Value:         value,
		QuestionIndex: s.currentIndex,
		SubmittedAt:   s.clock.Now(),
	})
	return s.progress(), nil
}

// RemovePlayer drops the player joined from connID. Their score is discarded;
// answers they already submitted stay on record.
func (s *Session) RemovePlayer(connID string) (Player, bool) {
	p, ok := s.byConn[connID]
	if !ok {
		return Player{}, false
	}
	delete(s.byConn, connID)
	for i, candidate := range s.players {
		if candidate == p {
			s.players = append(s.players[:i:i], s.players[i+1:]...)
			break
		}
	}
	return *p, true
}

// Leaderboard ranks players by score, highest first. Equal scores keep join order.
func (s *Session) Leaderboard() []Standing {
	board := s.PlayerList()
	sort.SliceStable(board, func(i, j int) bool {
		return board[i].Score > board[j].Score
	})
	return board
}

// PlayerList returns nickname and score for each player in join order.
func (s *Session) PlayerList() []Standing {
	out := make([]Standing, len(s.players))
	for i, p := range s.players {
		out[i] = Standing{PlayerID: p.PlayerID, Nickname: p.Nickname, Score: p.Score}
	}
	return out
}

func (s *Session) progress() AnswerProgress {
	return AnswerProgress{
		QuestionIndex: s.currentIndex,
		Received:      len(s.answers[s.currentIndex]),
		Total:         len(s.players),
	}
}

func (s *Session) questionView() QuestionView {
	q := s.Quiz.Questions[s.currentIndex]
	return QuestionView{Index: s.currentIndex, Text: q.Text, Total: s.Quiz.Len()}
}

func (s *Session) playerByID(id uuid.UUID) *Player {
	for _, p := range s.players {
		if p.PlayerID == id {
			return p
		}
	}
	return nil
}
