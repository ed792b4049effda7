package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/warebot/warebot/internal/cli/warebotctl"
)

func main() {
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("WAREBOT_CLI_TIMEOUT")), 10*time.Second)
	options := warebotctl.Options{
		BaseURL: envOr("WAREBOT_API_URL", "http://localhost:8080"),
		APIKey:  strings.TrimSpace(os.Getenv("WAREBOT_API_KEY")),
		Timeout: timeout,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}

	code := warebotctl.Run(context.Background(), os.Args[1:], options)
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid WAREBOT_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
