package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host string `env:"HOST,default=0.0.0.0"`
	Port int    `env:"PORT,default=8080"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`

	ResponderURL     string        `env:"RESPONDER_URL,required=true"`
	ResponderAPIKey  string        `env:"RESPONDER_API_KEY,required=true"`
	ResponderModel   string        `env:"RESPONDER_MODEL,default=deepseek-chat"`
	ResponderTimeout time.Duration `env:"RESPONDER_TIMEOUT,default=30s"`

	SplitThreshold int           `env:"SPLIT_THRESHOLD,default=220"`
	SplitDelay     time.Duration `env:"SPLIT_DELAY,default=500ms"`
	HistoryWindow  int           `env:"HISTORY_WINDOW,default=40"`
	ReducedWindow  int           `env:"REDUCED_WINDOW,default=15"`

	ConvergeAttempts int           `env:"CONVERGE_ATTEMPTS,default=3"`
	ConvergeDelay    time.Duration `env:"CONVERGE_DELAY,default=300ms"`

	PollInterval      time.Duration `env:"POLL_INTERVAL,default=2s"`
	RetentionInterval time.Duration `env:"RETENTION_INTERVAL,default=10m"`
	RoomIdleTTL       time.Duration `env:"ROOM_IDLE_TTL,default=24h"`

	AdminSecret        string        `env:"ADMIN_SECRET,required=true"`
	AdminTokenTTL      time.Duration `env:"ADMIN_TOKEN_TTL,default=24h"`
	CensoredWords      string        `env:"CENSORED_WORDS"`
	CharReplacement    string        `env:"CHARACTER_REPLACEMENT,default=*"`
	DebugInspectorPort int           `env:"DEBUG_INSPECTOR_PORT,default=8081"`
}

// CensoredWordList splits the comma-separated CENSORED_WORDS value.
// Empty means moderation is disabled.
func (c Config) CensoredWordList() []string {
	if strings.TrimSpace(c.CensoredWords) == "" {
		return nil
	}
	var words []string
	for _, w := range strings.Split(c.CensoredWords, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}

func (c Config) CharacterRune() (rune, error) {
	r := []rune(c.CharReplacement)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			c.CharReplacement,
		)
	}
	return r[0], nil
}
