package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by CREDENCE_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("CREDENCE_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// APIKey returns the static key clients must present in the X-API-Key
// header. Auth is disabled when empty.
func APIKey() string {
	return os.Getenv("API_KEY")
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

// PropagationSamples returns the Monte Carlo sample count per propagation.
// Defaults to 100 if not set.
func PropagationSamples() int {
	n, err := strconv.Atoi(os.Getenv("PROPAGATION_SAMPLES"))
	if err != nil || n < 1 {
		return 100
	}
	return n
}

// PropagationWorkers returns the worker count for batch propagation.
// Zero means one worker per CPU.
func PropagationWorkers() int {
	n, err := strconv.Atoi(os.Getenv("PROPAGATION_WORKERS"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// PropagationSeed returns the base RNG seed for propagation. Zero means
// derive a seed from the clock at startup.
func PropagationSeed() uint64 {
	n, err := strconv.ParseUint(os.Getenv("PROPAGATION_SEED"), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ExecutorThreshold returns the base confidence threshold for gated
// execution. Defaults to 0.7 if not set.
func ExecutorThreshold() float64 {
	t, err := strconv.ParseFloat(os.Getenv("EXECUTOR_THRESHOLD"), 64)
	if err != nil || t <= 0 || t > 1 {
		return 0.7
	}
	return t
}

// ExecutorAdaptive reports whether the threshold adapts to decision context.
// Defaults to true if not set.
func ExecutorAdaptive() bool {
	v := os.Getenv("EXECUTOR_ADAPTIVE")
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return b
}

func ExecutorMinThreshold() float64 {
	t, err := strconv.ParseFloat(os.Getenv("EXECUTOR_MIN_THRESHOLD"), 64)
	if err != nil || t <= 0 {
		return 0.1
	}
	return t
}

func ExecutorMaxThreshold() float64 {
	t, err := strconv.ParseFloat(os.Getenv("EXECUTOR_MAX_THRESHOLD"), 64)
	if err != nil || t <= 0 || t > 1 {
		return 0.99
	}
	return t
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
