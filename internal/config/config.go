package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`

	TCPAddr  string `env:"TCP_ADDR" env-default:":5555"`
	HTTPAddr string `env:"HTTP_ADDR" env-default:":8080"`

	Postgres Postgres
	Redis    Redis
	Auth     Auth
	Game     Game

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" env-separator:","`
}

type Postgres struct {
	URL                 string `env:"DATABASE_URL"`
	MaxOpenConns        int    `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns        int    `env:"DB_MAX_IDLE_CONNS" env-default:"25"`
	ConnMaxLifetimeMins int    `env:"DB_CONN_MAX_LIFETIME_MINUTES" env-default:"5"`
}

type Redis struct {
	Addr        string        `env:"REDIS_ADDR"`
	Password    string        `env:"REDIS_PASSWORD"`
	PresenceTTL time.Duration `env:"PRESENCE_TTL" env-default:"2m"`
}

type Auth struct {
	JWTSecret     string        `env:"JWT_SECRET" env-default:"change-me-in-production"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" env-default:"720h"`
	RequireAuth   bool          `env:"REQUIRE_AUTH" env-default:"false"`
	SecureCookies bool          `env:"SECURE_COOKIES" env-default:"false"`
	BcryptCost    int           `env:"BCRYPT_COST" env-default:"10"`
}

type Game struct {
	MatchmakingTimeout time.Duration `env:"MATCHMAKING_TIMEOUT" env-default:"5m"`
	PairInterval       time.Duration `env:"PAIR_INTERVAL" env-default:"100ms"`
	TurnTimeout        time.Duration `env:"TURN_TIMEOUT" env-default:"0s"`
	PostGameWindow     time.Duration `env:"POST_GAME_WINDOW" env-default:"30s"`
	MaxSessionAge      time.Duration `env:"MAX_SESSION_AGE" env-default:"2h"`
	CleanupInterval    time.Duration `env:"CLEANUP_INTERVAL" env-default:"1m"`
	OutboundBuffer     int           `env:"OUTBOUND_BUFFER" env-default:"64"`

	BotFallback   bool          `env:"BOT_FALLBACK" env-default:"false"`
	BotDifficulty string        `env:"BOT_DIFFICULTY" env-default:"medium"`
	BotMoveDelay  time.Duration `env:"BOT_MOVE_DELAY" env-default:"500ms"`
}

// ConnMaxLifetime converts the minutes setting to a duration.
func (p Postgres) ConnMaxLifetime() time.Duration {
	return time.Duration(p.ConnMaxLifetimeMins) * time.Minute
}

// Load reads envFiles into the environment when they exist, then the
// environment into a Config. Variables already set win over file values.
func Load(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("unable to load %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("unable to read environment: %w", err)
	}
	return cfg, nil
}

// MustLoad is Load for program start.
func MustLoad(envFiles ...string) *Config {
	cfg, err := Load(envFiles...)
	if err != nil {
		panic(err)
	}
	return cfg
}
