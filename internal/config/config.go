package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/victornm/quizsync/internal/domain"
)

type Log struct {
	Level  string
	Format string
}

type HTTP struct {
	Port int32
}

type Redis struct {
	Addrs  []string
	Pass   string
	Prefix string
	TTL    time.Duration
}

type Postgres struct {
	Addr string
	User string
	Pass string
	Name string
}

// Enabled reports whether a Postgres backend is configured.
func (p Postgres) Enabled() bool { return p.Addr != "" }

func (p Postgres) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s", p.User, p.Pass, p.Addr, p.Name)
}

type Transport struct {
	Kind     string
	RelayURL string `mapstructure:"relay_url"`
}

type Cache struct {
	Kind         string
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Game tunes the processes. Tick is the length of one countdown or question
// timer step, one second outside of demos.
type Game struct {
	Tick time.Duration
	TopN int `mapstructure:"top_n"`
}

// Load config from file into the config struct, config must be a pointer to the config struct.
// Values already set in config act as defaults. A .env file in the working
// directory is applied to the environment first when present.
func Load(file string, config any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %v", err)
	}

	v := viper.New()
	m := make(map[string]any)

	if err := mapstructure.Decode(config, &m); err != nil {
		return fmt.Errorf("mapstructure: %v", err)
	}

	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("merge config map: %v", err)
	}

	v.SetConfigFile(file)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config from file %s: %v", file, err)
	}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshal config: %v", err)
	}

	return nil
}

// LoadQuiz reads a quiz definition (yaml or json) and validates it.
func LoadQuiz(file string) (domain.Quiz, error) {
	v := viper.New()
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return domain.Quiz{}, fmt.Errorf("read quiz from file %s: %v", file, err)
	}

	var q domain.Quiz
	if err := v.Unmarshal(&q); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %v", err)
	}

	if err := q.Validate(); err != nil {
		return domain.Quiz{}, fmt.Errorf("quiz %s: %w", file, err)
	}

	return q, nil
}
