package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"cardbattle/internal/domain"
)

// ErrInvalidScoring is fatal: the server must not open any room when the
// scoring tables cannot be parsed.
var ErrInvalidScoring = errors.New("config: invalid scoring configuration")

type Config struct {
	Mode         string        `mapstructure:"mode"`
	Port         int           `mapstructure:"port"`
	Secret       string        `mapstructure:"secret"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RoomTTL      time.Duration `mapstructure:"room_ttl"`
	ReapInterval time.Duration `mapstructure:"reap_interval"`
	GameMode     string        `mapstructure:"game_mode"`
	Scoring      Scoring       `mapstructure:"scoring"`
}

// Outcome is one row of a result table: the label and score delta awarded to
// the participant at that position of the weight ordering.
type Outcome struct {
	Label string `mapstructure:"label" json:"label"`
	Score int    `mapstructure:"score" json:"score"`
}

type OutcomeTables struct {
	TwoPlayers   []Outcome `mapstructure:"two_players"`
	ThreePlayers []Outcome `mapstructure:"three_players"`
}

// ForCount returns the outcome rows for a participant count, highest weight
// first. Only 2- and 3-player tables exist.
func (t OutcomeTables) ForCount(n int) ([]Outcome, bool) {
	switch n {
	case 2:
		return t.TwoPlayers, true
	case 3:
		return t.ThreePlayers, true
	default:
		return nil, false
	}
}

// Scoring is read-only after load; the engine only ever reads it.
type Scoring struct {
	RankWeights map[string]int `mapstructure:"rank_weights"`
	SuitWeights map[string]int `mapstructure:"suit_weights"`
	Outcomes    OutcomeTables  `mapstructure:"outcomes"`
}

// Weight ranks a played card: rank dominates, suit breaks rank ties.
func (s Scoring) Weight(c domain.Card) int {
	return s.RankWeights[c.Rank]*10 + s.SuitWeights[string(c.Suit)]
}

// Validate checks the scoring tables are complete. Any gap is ErrInvalidScoring.
func (s Scoring) Validate() error {
	for _, rank := range domain.Ranks {
		if _, ok := s.RankWeights[rank]; !ok {
			return fmt.Errorf("%w: missing rank weight %q", ErrInvalidScoring, rank)
		}
	}
	for _, suit := range domain.Suits {
		if _, ok := s.SuitWeights[string(suit)]; !ok {
			return fmt.Errorf("%w: missing suit weight %q", ErrInvalidScoring, suit)
		}
	}
	if len(s.Outcomes.TwoPlayers) != 2 {
		return fmt.Errorf("%w: two_players table needs exactly 2 rows, got %d", ErrInvalidScoring, len(s.Outcomes.TwoPlayers))
	}
	if len(s.Outcomes.ThreePlayers) != 3 {
		return fmt.Errorf("%w: three_players table needs exactly 3 rows, got %d", ErrInvalidScoring, len(s.Outcomes.ThreePlayers))
	}
	return nil
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("send_buffer", 32)
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("room_ttl", "0")
	v.SetDefault("reap_interval", "1m")
	v.SetDefault("game_mode", "battle")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	// Scoring has no defaults on purpose: a server without valid tables
	// must refuse to start.
	if err := cfg.Scoring.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
