package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"numquiz"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`
	PublicBaseURL           string        `env:"PUBLIC_BASE_URL" envDefault:""`
	LogLevel                string        `env:"LOG_LEVEL" envDefault:"info"`

	Game     Game
	WS       WS
	Postgres Postgres
	Redis    Redis
	Results  Results
	CORS     CORS
}

// Game groups gameplay defaults.
type Game struct {
	MinPlayersToStart int `env:"GAME_MIN_PLAYERS_TO_START" envDefault:"1"`
	RoomCodeLength    int `env:"GAME_ROOM_CODE_LENGTH" envDefault:"6"`
	CommandBuffer     int `env:"GAME_COMMAND_BUFFER" envDefault:"1024"`
	PointsPerWin      int `env:"GAME_POINTS_PER_WIN" envDefault:"1"`
}

// WS tunes websocket keepalive and buffering.
type WS struct {
	PingInterval  time.Duration `env:"WS_PING_INTERVAL" envDefault:"54s"`
	PongWait      time.Duration `env:"WS_PONG_WAIT" envDefault:"60s"`
	WriteWait     time.Duration `env:"WS_WRITE_WAIT" envDefault:"10s"`
	ReadLimit     int64         `env:"WS_READ_LIMIT_BYTES" envDefault:"1048576"`
	SendQueueSize int           `env:"WS_SEND_QUEUE_SIZE" envDefault:"256"`
}

// Postgres captures connection info for the SQL database. It is optional;
// game history is only recorded when PG_HOST is set.
type Postgres struct {
	Host     string `env:"PG_HOST" envDefault:""`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER" envDefault:"postgres"`
	Password string `env:"PG_PASSWORD" envDefault:""`
	Database string `env:"PG_DATABASE" envDefault:"numquiz"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int32  `env:"PG_MAX_CONNS" envDefault:"10"`
}

// Enabled reports whether a database is configured.
func (p Postgres) Enabled() bool { return p.Host != "" }

// DSN renders a postgres:// connection URL.
func (p Postgres) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     p.Host + ":" + strconv.Itoa(p.Port),
		Path:     "/" + p.Database,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}
	if p.Password == "" {
		u.User = url.User(p.User)
	}
	return u.String()
}

// Redis holds the recent-results cache configuration. It is optional.
type Redis struct {
	Addr     string `env:"REDIS_ADDR" envDefault:""`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Enabled reports whether a Redis server is configured.
func (r Redis) Enabled() bool { return r.Addr != "" }

// Results governs archiving of finished games.
type Results struct {
	TTL         time.Duration `env:"RESULTS_TTL" envDefault:"168h"`
	RecentLimit int           `env:"RESULTS_RECENT_LIMIT" envDefault:"50"`
	KeyPrefix   string        `env:"RESULTS_KEY_PREFIX" envDefault:"results"`
	QueueSize   int           `env:"RESULTS_QUEUE_SIZE" envDefault:"64"`
	SaveTimeout time.Duration `env:"RESULTS_SAVE_TIMEOUT" envDefault:"5s"`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *App) validate() error {
	if c.Game.MinPlayersToStart < 0 {
		return errors.New("GAME_MIN_PLAYERS_TO_START must not be negative")
	}
	if c.Game.RoomCodeLength < 4 {
		return errors.New("GAME_ROOM_CODE_LENGTH must be at least 4")
	}
	if c.Game.PointsPerWin <= 0 {
		return errors.New("GAME_POINTS_PER_WIN must be positive")
	}
	if c.WS.PingInterval >= c.WS.PongWait {
		return errors.New("WS_PING_INTERVAL must be shorter than WS_PONG_WAIT")
	}
	if c.PublicBaseURL != "" {
		u, err := url.Parse(c.PublicBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("PUBLIC_BASE_URL must be an absolute URL")
		}
	}
	return nil
}
