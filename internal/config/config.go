// Package config reads process settings from .env, the environment and flags.
//
// Defaults can be overridden via environment variables:
//
//	PORT / GAME_PORT       (default: 8081, PORT wins)
//	TICK_INTERVAL_MS       (default: 100)
//	MATCH_GRACE_MS         (default: 5000)
//	KEEPALIVE_INTERVAL_MS  (default: 30000)
//	MAX_MATCH_TICKS        (default: 3000, 0 disables)
//	DEFAULT_REPUTATION     (default: 100)
//	REPUTATION_API_BASE    (default: empty, lookups disabled)
//	SEND_BUFFER            (default: 64)
package config

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr        string
	TickInterval      time.Duration
	MatchGrace        time.Duration
	Keepalive         time.Duration
	MaxMatchTicks     int64
	DefaultReputation int
	ReputationAPIBase string
	SendBuffer        int
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	s := os.Getenv(k)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("config: %s=%q is not a number, using %d", k, s, def)
		return def
	}
	return n
}

func millis(k string, def int) time.Duration {
	n := getint(k, def)
	if n <= 0 {
		n = def
	}
	return time.Duration(n) * time.Millisecond
}

// Load reads an optional .env file, then the environment, then args (normally os.Args[1:]).
func Load(args []string, envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Println("config: no .env file found, reading environment variables directly")
	}

	p := os.Getenv("PORT")
	if p == "" {
		p = getenv("GAME_PORT", "8081")
	}
	cfg := Config{
		ListenAddr:        ":" + p,
		TickInterval:      millis("TICK_INTERVAL_MS", 100),
		MatchGrace:        millis("MATCH_GRACE_MS", 5000),
		Keepalive:         millis("KEEPALIVE_INTERVAL_MS", 30000),
		MaxMatchTicks:     int64(max(0, getint("MAX_MATCH_TICKS", 3000))),
		DefaultReputation: getint("DEFAULT_REPUTATION", 100),
		ReputationAPIBase: os.Getenv("REPUTATION_API_BASE"),
		SendBuffer:        getint("SEND_BUFFER", 64),
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}

	fs := flag.NewFlagSet("game", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "listen address")
	if err := fs.Parse(args); err != nil {
		return cfg, fmt.Errorf("flags: %w", err)
	}
	return cfg, nil
}
