package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Validator is implemented by configs that check their own invariants after parsing.
type Validator interface {
	Validate() error
}

// Load reads the given .env files (missing files are skipped, already set variables win)
// and parses the environment into a T using `env` and `envDefault` struct tags.
// When T implements Validator, Validate runs on the result.
//
//	type Config struct {
//		ScanInterval time.Duration `env:"FLAGKIT_SCAN_INTERVAL" envDefault:"1m"`
//	}
//
//	cfg, err := config.Load[Config](".env")
func Load[T any](envFiles ...string) (T, error) {
	var zero T
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return zero, errors.Join(ErrLoadingEnvFile, fmt.Errorf("%s: %w", file, err))
		}
	}

	cfg, err := env.ParseAs[T]()
	if err != nil {
		return zero, errors.Join(ErrParsingConfig, err)
	}

	if v, ok := any(&cfg).(Validator); ok {
		if err := v.Validate(); err != nil {
			return zero, errors.Join(ErrInvalidConfig, err)
		}
	}
	return cfg, nil
}

// MustLoad works like Load but panics on failure. Use it for settings required at startup.
func MustLoad[T any](envFiles ...string) T {
	cfg, err := Load[T](envFiles...)
	if err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
	return cfg
}

// Getenv returns the variable or fallback when it is unset or empty.
func Getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
