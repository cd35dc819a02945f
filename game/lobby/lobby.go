package lobby

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wricardo/chain-reaction-game/game/engine"
	"github.com/wricardo/chain-reaction-game/game/service"
	"github.com/wricardo/chain-reaction-game/logging"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room is full")
	ErrNotHost         = errors.New("only the host can start the game")
	ErrPlayersNotReady = errors.New("not every player is ready")
	ErrNotMember       = errors.New("not a member of this room")
	ErrNameTaken       = errors.New("name already taken in this room")
	ErrAlreadyStarted  = errors.New("game already started")
	ErrInvalidName     = errors.New("player name is required")
	ErrTokenRequired   = errors.New("seat token required")
	ErrWrongSession    = errors.New("room does not play this session")
	ErrNotSeated       = errors.New("no seat in this game")
)

const (
	// MaxPlayers is the seat count of a room.
	MaxPlayers = 2

	// DefaultConfigName is the two-human config rooms start with.
	DefaultConfigName = "duel"

	codeBytes = 3
)

// Member is a player seated in a room.
type Member struct {
	Name     string          `json:"name"`
	Ready    bool            `json:"ready"`
	Host     bool            `json:"host"`
	Player   engine.PlayerID `json:"player,omitempty"`
	JoinedAt time.Time       `json:"joined_at"`

	token string
}

// Room is a snapshot of a waiting or started room.
type Room struct {
	Code       string    `json:"code"`
	Host       string    `json:"host"`
	ConfigName string    `json:"config_name"`
	Members    []Member  `json:"members"`
	AllReady   bool      `json:"all_ready"`
	SessionID  string    `json:"session_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Seat is handed to a player when they enter a room. The token
// identifies them in later ready and start calls.
type Seat struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

type room struct {
	code       string
	configName string
	members    []*Member
	sessionID  string
	humans     []engine.PlayerID
	createdAt  time.Time
	touchedAt  time.Time
}

// Lobby holds rooms by code. Starting a room creates a game session.
type Lobby struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	games  service.GameService
	logger *zap.Logger
}

// Option configures a Lobby
type Option func(*Lobby)

// WithLogger sets the lobby logger
func WithLogger(logger *zap.Logger) Option {
	return func(l *Lobby) {
		l.logger = logger
	}
}

// New creates a lobby that starts games through games.
func New(games service.GameService, opts ...Option) *Lobby {
	l := &Lobby{
		rooms: make(map[string]*room),
		games: games,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = logging.OrNop(l.logger)
	return l
}

// Create opens a room hosted by host. An empty configName uses DefaultConfigName.
func (l *Lobby) Create(host, configName string) (*Room, *Seat, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, nil, ErrInvalidName
	}
	if configName == "" {
		configName = DefaultConfigName
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	code := l.newCode()
	now := time.Now()
	r := &room{
		code:       code,
		configName: configName,
		createdAt:  now,
		touchedAt:  now,
	}
	m := r.add(host, true)
	l.rooms[code] = r

	l.logger.Info("room created", zap.String("room", code), zap.String("host", host))
	return r.snapshot(), &Seat{Code: code, Name: host, Token: m.token}, nil
}

// Join seats name in the room with code.
func (l *Lobby) Join(code, name string) (*Room, *Seat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, ErrInvalidName
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.room(code)
	if err != nil {
		return nil, nil, err
	}
	if r.sessionID != "" {
		return nil, nil, ErrAlreadyStarted
	}
	if r.byName(name) != nil {
		return nil, nil, ErrNameTaken
	}
	if len(r.members) >= MaxPlayers {
		return nil, nil, ErrRoomFull
	}

	m := r.add(name, false)
	l.logger.Info("room joined", zap.String("room", r.code), zap.String("player", name))
	return r.snapshot(), &Seat{Code: r.code, Name: name, Token: m.token}, nil
}

// Ready marks the member holding token as ready. Marking twice is a no-op.
func (l *Lobby) Ready(code, token string) (*Room, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.room(code)
	if err != nil {
		return nil, err
	}
	m := r.byToken(token)
	if m == nil {
		return nil, ErrNotMember
	}
	m.Ready = true
	r.touchedAt = time.Now()
	return r.snapshot(), nil
}

// Leave removes the member holding token. A waiting room with nobody left
// is closed; a started room stays until it idles out so its game keeps
// requiring seat tokens. When the host leaves the next member takes over.
func (l *Lobby) Leave(code, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.room(code)
	if err != nil {
		return err
	}
	idx := -1
	for i, m := range r.members {
		if m.token == token {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotMember
	}

	wasHost := r.members[idx].Host
	r.members = append(r.members[:idx], r.members[idx+1:]...)
	if len(r.members) == 0 && r.sessionID == "" {
		delete(l.rooms, r.code)
		l.logger.Info("room closed", zap.String("room", r.code))
		return nil
	}
	if wasHost && len(r.members) > 0 {
		r.members[0].Host = true
		r.members[0].Ready = false
	}
	r.touchedAt = time.Now()
	return nil
}

// Start creates the game session for the room. Only the host may start,
// and every other member must be ready.
func (l *Lobby) Start(ctx context.Context, code, token string) (*Room, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.room(code)
	if err != nil {
		return nil, err
	}
	m := r.byToken(token)
	if m == nil {
		return nil, ErrNotMember
	}
	if !m.Host {
		return nil, ErrNotHost
	}
	if r.sessionID != "" {
		return nil, ErrAlreadyStarted
	}
	if !r.allReady() {
		return nil, ErrPlayersNotReady
	}

	info, err := l.games.CreateSession(ctx, r.configName)
	if err != nil {
		return nil, fmt.Errorf("failed to start room %s: %w", r.code, err)
	}

	// Seats follow join order, host first.
	r.humans = humanPlayers(info.GameConfig)
	for i, member := range r.members {
		if i < len(r.humans) {
			member.Player = r.humans[i]
		}
	}
	r.sessionID = info.ID
	r.touchedAt = time.Now()

	l.logger.Info("room started",
		zap.String("room", r.code),
		zap.String("session", info.ID),
		zap.Int("players", len(r.members)),
	)
	return r.snapshot(), nil
}

// Get returns the room with code.
func (l *Lobby) Get(code string) (*Room, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, err := l.room(code)
	if err != nil {
		return nil, err
	}
	return r.snapshot(), nil
}

// Guards reports whether sessionID was started from a room. Moves in such
// a session must carry a seat token.
func (l *Lobby) Guards(sessionID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.roomFor(sessionID) != nil
}

// Authorize resolves the player a seat token moves for in sessionID. code
// may be empty, in which case the room is found through the session. A
// member moves for their own seat; the host also moves for human seats
// that no member holds, so requested picks one of those.
func (l *Lobby) Authorize(sessionID, code, token string, requested engine.PlayerID) (engine.PlayerID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var r *room
	if code != "" {
		found, err := l.room(code)
		if err != nil {
			return engine.NoPlayer, err
		}
		if found.sessionID == "" || !strings.EqualFold(found.sessionID, sessionID) {
			return engine.NoPlayer, ErrWrongSession
		}
		r = found
	} else if r = l.roomFor(sessionID); r == nil {
		return engine.NoPlayer, ErrWrongSession
	}

	if token == "" {
		return engine.NoPlayer, ErrTokenRequired
	}
	m := r.byToken(token)
	if m == nil {
		return engine.NoPlayer, ErrNotMember
	}
	if m.Player == engine.NoPlayer {
		return engine.NoPlayer, ErrNotSeated
	}

	r.touchedAt = time.Now()
	if m.Host && requested != engine.NoPlayer && requested != m.Player && r.openSeat(requested) {
		return requested, nil
	}
	return m.Player, nil
}

// List returns every room, newest first.
func (l *Lobby) List() []*Room {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Room, 0, len(l.rooms))
	for _, r := range l.rooms {
		out = append(out, r.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// CleanupIdle closes rooms untouched for longer than maxAge.
func (l *Lobby) CleanupIdle(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for code, r := range l.rooms {
		if r.touchedAt.Before(cutoff) {
			delete(l.rooms, code)
			removed++
		}
	}
	if removed > 0 {
		l.logger.Info("idle rooms closed", zap.Int("count", removed))
	}
	return removed
}

// Count returns the number of open rooms.
func (l *Lobby) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.rooms)
}

// roomFor returns the started room playing sessionID. Callers hold l.mu.
func (l *Lobby) roomFor(sessionID string) *room {
	if sessionID == "" {
		return nil
	}
	for _, r := range l.rooms {
		if strings.EqualFold(r.sessionID, sessionID) {
			return r
		}
	}
	return nil
}

func (l *Lobby) room(code string) (*room, error) {
	r, ok := l.rooms[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	return r, nil
}

// newCode returns an unused 6-character uppercase hex code. Callers hold l.mu.
func (l *Lobby) newCode() string {
	for {
		b := make([]byte, codeBytes)
		rand.Read(b)
		code := strings.ToUpper(hex.EncodeToString(b))
		if _, exists := l.rooms[code]; !exists {
			return code
		}
	}
}

func (r *room) add(name string, host bool) *Member {
	m := &Member{
		Name:     name,
		Host:     host,
		JoinedAt: time.Now(),
		token:    uuid.NewString(),
	}
	r.members = append(r.members, m)
	r.touchedAt = m.JoinedAt
	return m
}

func (r *room) byName(name string) *Member {
	for _, m := range r.members {
		if strings.EqualFold(m.Name, name) {
			return m
		}
	}
	return nil
}

func (r *room) byToken(token string) *Member {
	if token == "" {
		return nil
	}
	for _, m := range r.members {
		if m.token == token {
			return m
		}
	}
	return nil
}

// openSeat reports whether player is a human seat no member holds.
func (r *room) openSeat(player engine.PlayerID) bool {
	if !slices.Contains(r.humans, player) {
		return false
	}
	for _, m := range r.members {
		if m.Player == player {
			return false
		}
	}
	return true
}

// allReady reports whether every member other than the host is ready.
func (r *room) allReady() bool {
	for _, m := range r.members {
		if !m.Host && !m.Ready {
			return false
		}
	}
	return true
}

func (r *room) host() string {
	for _, m := range r.members {
		if m.Host {
			return m.Name
		}
	}
	return ""
}

func (r *room) snapshot() *Room {
	out := &Room{
		Code:       r.code,
		Host:       r.host(),
		ConfigName: r.configName,
		Members:    make([]Member, 0, len(r.members)),
		AllReady:   r.allReady(),
		SessionID:  r.sessionID,
		CreatedAt:  r.createdAt,
	}
	for _, m := range r.members {
		cp := *m
		cp.token = ""
		out.Members = append(out.Members, cp)
	}
	return out
}

func humanPlayers(config *engine.GameConfig) []engine.PlayerID {
	if config == nil {
		return nil
	}
	var ids []engine.PlayerID
	for _, p := range config.Players {
		if !p.IsAutomated {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
