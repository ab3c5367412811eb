package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type SessionConfig struct {
	Voice             string `yaml:"voice"`
	GenerateTimeout   int    `yaml:"generate_timeout_ms"`
	SynthesizeTimeout int    `yaml:"synthesize_timeout_ms"`
	MaxHistoryTurns   int    `yaml:"max_history_turns"`
}

type CaptureConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Mode            string `yaml:"mode"` // mock, exec
	Command         string `yaml:"command"`
	Language        string `yaml:"language"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	NoSpeechTimeout int    `yaml:"no_speech_timeout_ms"`
}

type GenerationConfig struct {
	Mode        string  `yaml:"mode"` // mock, ollama, exec
	Endpoint    string  `yaml:"endpoint"`
	Command     string  `yaml:"command"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type SynthesisConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Mode       string `yaml:"mode"` // mock, exec
	Command    string `yaml:"command"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	BitDepth   int    `yaml:"bit_depth"`
}

type PlaybackConfig struct {
	Mode    string `yaml:"mode"` // mock, exec
	Command string `yaml:"command"`
}

type ModerationConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Mode     string `yaml:"mode"` // mock, ollama
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
}

type StoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	Session     SessionConfig    `yaml:"session"`
	Capture     CaptureConfig    `yaml:"capture"`
	Generation  GenerationConfig `yaml:"generation"`
	Synthesis   SynthesisConfig  `yaml:"synthesis"`
	Playback    PlaybackConfig   `yaml:"playback"`
	Moderation  ModerationConfig `yaml:"moderation"`
	Store       StoreConfig      `yaml:"store"`
}

func Default() Config {
	return Config{
		RuntimeName: "bloom-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Session: SessionConfig{
			Voice:             "Algenib",
			GenerateTimeout:   60000,
			SynthesizeTimeout: 45000,
			MaxHistoryTurns:   200,
		},
		Capture: CaptureConfig{
			Enabled:         false,
			Mode:            "mock",
			SampleRate:      16000,
			Channels:        1,
			NoSpeechTimeout: 8000,
		},
		Generation: GenerationConfig{
			Mode:        "mock",
			Endpoint:    "http://localhost:11434",
			Model:       "llama3.2:latest",
			MaxTokens:   1024,
			Temperature: 0.9,
		},
		Synthesis: SynthesisConfig{
			Enabled:    true,
			Mode:       "mock",
			SampleRate: 24000,
			Channels:   1,
			BitDepth:   16,
		},
		Playback: PlaybackConfig{
			Mode: "mock",
		},
		Moderation: ModerationConfig{
			Enabled:  true,
			Mode:     "mock",
			Endpoint: "http://localhost:11434",
			Model:    "llama3.2:latest",
		},
		Store: StoreConfig{
			Path:          "./data/bloom.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "BLOOM_RUNTIME_NAME")
	overrideString(&cfg.Environment, "BLOOM_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "BLOOM_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "BLOOM_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "BLOOM_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "BLOOM_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "BLOOM_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Embedded, "BLOOM_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "BLOOM_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "BLOOM_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "BLOOM_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "BLOOM_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "BLOOM_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "BLOOM_BUS_TOKEN")
	overrideInt(&cfg.Bus.ConnectTimeout, "BLOOM_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Session.Voice, "BLOOM_SESSION_VOICE")
	overrideInt(&cfg.Session.GenerateTimeout, "BLOOM_SESSION_GENERATE_TIMEOUT_MS")
	overrideInt(&cfg.Session.SynthesizeTimeout, "BLOOM_SESSION_SYNTHESIZE_TIMEOUT_MS")
	overrideInt(&cfg.Session.MaxHistoryTurns, "BLOOM_SESSION_MAX_HISTORY_TURNS")
	overrideBool(&cfg.Capture.Enabled, "BLOOM_CAPTURE_ENABLED")
	overrideString(&cfg.Capture.Mode, "BLOOM_CAPTURE_MODE")
	overrideString(&cfg.Capture.Command, "BLOOM_CAPTURE_COMMAND")
	overrideString(&cfg.Capture.Language, "BLOOM_CAPTURE_LANGUAGE")
	overrideInt(&cfg.Capture.SampleRate, "BLOOM_CAPTURE_SAMPLE_RATE")
	overrideInt(&cfg.Capture.Channels, "BLOOM_CAPTURE_CHANNELS")
	overrideInt(&cfg.Capture.NoSpeechTimeout, "BLOOM_CAPTURE_NO_SPEECH_TIMEOUT_MS")
	overrideString(&cfg.Generation.Mode, "BLOOM_GENERATION_MODE")
	overrideString(&cfg.Generation.Endpoint, "BLOOM_GENERATION_ENDPOINT")
	overrideString(&cfg.Generation.Command, "BLOOM_GENERATION_COMMAND")
	overrideString(&cfg.Generation.Model, "BLOOM_GENERATION_MODEL")
	overrideInt(&cfg.Generation.MaxTokens, "BLOOM_GENERATION_MAX_TOKENS")
	overrideFloat(&cfg.Generation.Temperature, "BLOOM_GENERATION_TEMPERATURE")
	overrideBool(&cfg.Synthesis.Enabled, "BLOOM_SYNTHESIS_ENABLED")
	overrideString(&cfg.Synthesis.Mode, "BLOOM_SYNTHESIS_MODE")
	overrideString(&cfg.Synthesis.Command, "BLOOM_SYNTHESIS_COMMAND")
	overrideInt(&cfg.Synthesis.SampleRate, "BLOOM_SYNTHESIS_SAMPLE_RATE")
	overrideInt(&cfg.Synthesis.Channels, "BLOOM_SYNTHESIS_CHANNELS")
	overrideInt(&cfg.Synthesis.BitDepth, "BLOOM_SYNTHESIS_BIT_DEPTH")
	overrideString(&cfg.Playback.Mode, "BLOOM_PLAYBACK_MODE")
	overrideString(&cfg.Playback.Command, "BLOOM_PLAYBACK_COMMAND")
	overrideBool(&cfg.Moderation.Enabled, "BLOOM_MODERATION_ENABLED")
	overrideString(&cfg.Moderation.Mode, "BLOOM_MODERATION_MODE")
	overrideString(&cfg.Moderation.Endpoint, "BLOOM_MODERATION_ENDPOINT")
	overrideString(&cfg.Moderation.Model, "BLOOM_MODERATION_MODEL")
	overrideString(&cfg.Store.Path, "BLOOM_STORE_PATH")
	overrideString(&cfg.Store.RetentionMode, "BLOOM_STORE_RETENTION_MODE")
	overrideInt(&cfg.Store.RetentionDays, "BLOOM_STORE_RETENTION_DAYS")
	overrideInt(&cfg.Store.MaxSessions, "BLOOM_STORE_MAX_SESSIONS")
	overrideBool(&cfg.Store.VacuumOnStart, "BLOOM_STORE_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Session.Voice == "" {
		return errors.New("session.voice must not be empty")
	}
	if cfg.Session.GenerateTimeout <= 0 {
		return errors.New("session.generate_timeout_ms must be positive")
	}
	if cfg.Session.SynthesizeTimeout <= 0 {
		return errors.New("session.synthesize_timeout_ms must be positive")
	}
	if cfg.Capture.Enabled {
		switch cfg.Capture.Mode {
		case "mock", "exec":
		default:
			return errors.New("capture.mode must be one of mock|exec")
		}
		if cfg.Capture.Mode == "exec" && cfg.Capture.Command == "" {
			return errors.New("capture.command must be set when mode=exec")
		}
		if cfg.Capture.SampleRate <= 0 {
			return errors.New("capture.sample_rate must be positive")
		}
		if cfg.Capture.Channels <= 0 {
			return errors.New("capture.channels must be positive")
		}
	}
	switch cfg.Generation.Mode {
	case "mock", "ollama", "exec":
	default:
		return errors.New("generation.mode must be one of mock|ollama|exec")
	}
	if cfg.Generation.Mode == "ollama" && cfg.Generation.Endpoint == "" {
		return errors.New("generation.endpoint must be set when mode=ollama")
	}
	if cfg.Generation.Mode == "exec" && cfg.Generation.Command == "" {
		return errors.New("generation.command must be set when mode=exec")
	}
	if cfg.Generation.MaxTokens < 0 {
		return errors.New("generation.max_tokens must be >= 0")
	}
	if cfg.Synthesis.Enabled {
		switch cfg.Synthesis.Mode {
		case "mock", "exec":
		default:
			return errors.New("synthesis.mode must be one of mock|exec")
		}
		if cfg.Synthesis.Mode == "exec" && cfg.Synthesis.Command == "" {
			return errors.New("synthesis.command must be set when mode=exec")
		}
		if cfg.Synthesis.SampleRate <= 0 {
			return errors.New("synthesis.sample_rate must be positive")
		}
		if cfg.Synthesis.Channels <= 0 {
			return errors.New("synthesis.channels must be positive")
		}
		switch cfg.Synthesis.BitDepth {
		case 8, 16, 24, 32:
		default:
			return errors.New("synthesis.bit_depth must be one of 8|16|24|32")
		}
	}
	switch cfg.Playback.Mode {
	case "mock", "exec":
	default:
		return errors.New("playback.mode must be one of mock|exec")
	}
	if cfg.Playback.Mode == "exec" && cfg.Playback.Command == "" {
		return errors.New("playback.command must be set when mode=exec")
	}
	if cfg.Moderation.Enabled {
		switch cfg.Moderation.Mode {
		case "mock", "ollama":
		default:
			return errors.New("moderation.mode must be one of mock|ollama")
		}
		if cfg.Moderation.Mode == "ollama" && cfg.Moderation.Endpoint == "" {
			return errors.New("moderation.endpoint must be set when mode=ollama")
		}
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	switch cfg.Store.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.Store.RetentionDays < 0 {
		return errors.New("store.retention_days must be >= 0")
	}
	return nil
}
