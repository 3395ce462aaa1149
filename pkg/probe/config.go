package probe

import "time"

// Config holds the probe server settings.
type Config struct {
	Addr            string        `env:"FLAGKIT_PROBE_ADDR" envDefault:":8081"`
	CheckTimeout    time.Duration `env:"FLAGKIT_PROBE_CHECK_TIMEOUT" envDefault:"2s"`
	ShutdownTimeout time.Duration `env:"FLAGKIT_PROBE_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}
