package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Config is the runtime configuration, read from the environment and an
// optional .env file.
type Config struct {
	LogLevel     string
	Host         string
	PlaybackHost string
	SampleRate   int
	Channels     int
	DeviceID     string
	BridgeDepth  int
	ListenAddr   string
	OutputDir    string
	ChunkLength  time.Duration
	Language     string
	OpenAIAPIKey string
}

func Default() Config {
	return Config{
		LogLevel:    "info",
		Host:        "malgo",
		SampleRate:  44100,
		Channels:    1,
		BridgeDepth: 64,
		ListenAddr:  ":8081",
		OutputDir:   "output",
		ChunkLength: 2 * time.Second,
	}
}

// Load reads the given .env files (".env" when none are given) and then the
// environment. A missing .env file only logs a warning.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Warn().Err(err).Msg("Cannot load .env file")
	}
	return FromEnv()
}

// FromEnv reads SAIRA_* variables on top of the defaults.
func FromEnv() (Config, error) {
	cfg := Default()
	cfg.LogLevel = stringVar("SAIRA_LOG_LEVEL", cfg.LogLevel)
	cfg.Host = stringVar("SAIRA_HOST", cfg.Host)
	cfg.PlaybackHost = stringVar("SAIRA_PLAYBACK_HOST", cfg.PlaybackHost)
	cfg.DeviceID = stringVar("SAIRA_DEVICE_ID", cfg.DeviceID)
	cfg.ListenAddr = stringVar("SAIRA_LISTEN_ADDR", cfg.ListenAddr)
	cfg.OutputDir = stringVar("SAIRA_OUTPUT_DIR", cfg.OutputDir)
	cfg.Language = stringVar("SAIRA_LANGUAGE", cfg.Language)
	cfg.OpenAIAPIKey = os.Getenv("OPEN_AI_API_KEY")

	var err error
	if cfg.SampleRate, err = intVar("SAIRA_SAMPLE_RATE", cfg.SampleRate); err != nil {
		return cfg, err
	}
	if cfg.Channels, err = intVar("SAIRA_CHANNELS", cfg.Channels); err != nil {
		return cfg, err
	}
	if cfg.BridgeDepth, err = intVar("SAIRA_BRIDGE_DEPTH", cfg.BridgeDepth); err != nil {
		return cfg, err
	}
	seconds, err := floatVar("SAIRA_CHUNK_SECONDS", cfg.ChunkLength.Seconds())
	if err != nil {
		return cfg, err
	}
	cfg.ChunkLength = time.Duration(seconds * float64(time.Second))
	return cfg, nil
}

func stringVar(name, def string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return def
}

func intVar(name string, def int) (int, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def, errors.Errorf("%s must be a positive integer, got %q", name, v)
	}
	return n, nil
}

func floatVar(name string, def float64) (float64, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return def, errors.Errorf("%s must be a positive number, got %q", name, v)
	}
	return f, nil
}
