package game

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/numquiz/internal/quiz"
)

const (
	roomCodeAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	defaultRoomCodeLength = 6
	fallbackCodeLength    = 8
	maxCodeAttempts       = 10
)

// RegistryOptions configures session creation.
type RegistryOptions struct {
	Clock             clockwork.Clock
	RoomCodeLength    int
	MinPlayersToStart int
}

// Registry owns the live sessions keyed by room code.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	clock      clockwork.Clock
	codeLength int
	minPlayers int
	newCode    func(length int) (string, error)
	logger     zerolog.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(logger zerolog.Logger, opts RegistryOptions) *Registry {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	codeLength := opts.RoomCodeLength
	if codeLength <= 0 {
		codeLength = defaultRoomCodeLength
	}
	minPlayers := opts.MinPlayersToStart
	if minPlayers < 0 {
		minPlayers = 0
	}

	return &Registry{
		sessions:   make(map[string]*Session),
		clock:      clock,
		codeLength: codeLength,
		minPlayers: minPlayers,
		newCode:    randomRoomCode,
		logger:     logger.With().Str("component", "registry").Logger(),
	}
}

// Create stores a new waiting session hosted by hostConnID under an unused code.
// The quiz is expected to be validated already.
func (r *Registry) Create(hostConnID string, q quiz.Quiz) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, err := r.generateRoomCodeLocked()
	if err != nil {
		return nil, err
	}

	sess := newSession(code, hostConnID, q, r.minPlayers, r.clock)
	r.sessions[code] = sess

	r.logger.Info().
		Str("room_id", code).
		Str("game_id", sess.GameID.String()).
		Str("host_conn_id", hostConnID).
		Int("questions", q.Len()).
		Msg("room created")

	return sess, nil
}

// Get looks up a session by room code.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[NormalizeRoomID(id)]
	return sess, ok
}

// Remove deletes a session. It reports whether the session existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id = NormalizeRoomID(id)
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	r.logger.Info().Str("room_id", id).Msg("room removed")
	return true
}


// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// NormalizeRoomID canonicalizes user-typed room codes.
func NormalizeRoomID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// generateRoomCodeLocked draws codes until one is unused, widening the code
// after maxCodeAttempts collisions.
func (r *Registry) generateRoomCodeLocked() (string, error) {
	length := r.codeLength
	for attempt := 0; ; attempt++ {
		if attempt == maxCodeAttempts {
			length = max(r.codeLength+2, fallbackCodeLength)
			r.logger.Warn().Int("attempts", attempt).Int("length", length).Msg("room code space congested, widening code")
		}
		if attempt > 2*maxCodeAttempts {
			return "", fmt.Errorf("generate room code: no free code after %d attempts", attempt)
		}

		code, err := r.newCode(length)
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		if _, exists := r.sessions[code]; !exists {
			return code, nil
		}
	}
}

func randomRoomCode(length int) (string, error) {
	limit := big.NewInt(int64(len(roomCodeAlphabet)))
	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		sb.WriteByte(roomCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}
