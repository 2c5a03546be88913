package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backoff bounds the exponential reconnect delay between subscriber-loop
// failures.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64
}

// Config is the daemon's full runtime configuration.
type Config struct {
	Relays         []string
	Backoff        Backoff
	ConnectTimeout time.Duration
	FetchTimeout   time.Duration
	LogFile        string
	Verbose        bool
	DiagAddr       string
	DaemonPrivHex  string
}

func Default() Config {
	return Config{
		Relays: []string{"wss://relay.damus.io"},
		Backoff: Backoff{
			Min:    500 * time.Millisecond,
			Max:    30 * time.Second,
			Factor: 2,
			Jitter: 0.2,
		},
		ConnectTimeout: 10 * time.Second,
		FetchTimeout:   10 * time.Second,
		LogFile:        "rhi.log",
		Verbose:        false,
		DiagAddr:       "127.0.0.1:8090",
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables, falling back to Default() for anything unset.
// Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if relays := os.Getenv("RHI_RELAYS"); relays != "" {
		cfg.Relays = splitAndTrim(relays)
	}

	if ms := os.Getenv("RHI_BACKOFF_MIN_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil {
			cfg.Backoff.Min = time.Duration(v) * time.Millisecond
		}
	}
	if ms := os.Getenv("RHI_BACKOFF_MAX_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil {
			cfg.Backoff.Max = time.Duration(v) * time.Millisecond
		}
	}
	if f := os.Getenv("RHI_BACKOFF_FACTOR"); f != "" {
		if v, err := strconv.ParseFloat(f, 64); err == nil {
			cfg.Backoff.Factor = v
		}
	}
	if f := os.Getenv("RHI_BACKOFF_JITTER"); f != "" {
		if v, err := strconv.ParseFloat(f, 64); err == nil {
			cfg.Backoff.Jitter = v
		}
	}

	if ms := os.Getenv("RHI_CONNECT_TIMEOUT_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil {
			cfg.ConnectTimeout = time.Duration(v) * time.Millisecond
		}
	}
	if ms := os.Getenv("RHI_FETCH_TIMEOUT_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil {
			cfg.FetchTimeout = time.Duration(v) * time.Millisecond
		}
	}

	if v := os.Getenv("RHI_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("RHI_VERBOSE"); v != "" {
		cfg.Verbose = v == "true"
	}
	if v := os.Getenv("RHI_DIAG_ADDR"); v != "" {
		cfg.DiagAddr = v
	}
	if v := os.Getenv("RHI_PRIVATE_KEY"); v != "" {
		cfg.DaemonPrivHex = v
	}

	return cfg
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
