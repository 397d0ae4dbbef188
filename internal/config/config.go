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
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// SynthesisConfig holds the provider selection plus the pacing and chunking
// knobs shared by every provider implementation.
type SynthesisConfig struct {
	Mode             string  `yaml:"mode"` // minimax, exec, mock
	Endpoint         string  `yaml:"endpoint"`
	APIKey           string  `yaml:"api_key"`
	GroupID          string  `yaml:"group_id"`
	Model            string  `yaml:"model"`
	Command          string  `yaml:"command"`
	DefaultVoice     string  `yaml:"default_voice"`
	Speed            float64 `yaml:"speed"`
	Volume           float64 `yaml:"volume"`
	ChunkWords       int     `yaml:"chunk_words"`
	CallsPerMinute   int     `yaml:"calls_per_minute"`
	RateCooldownSec  int     `yaml:"rate_cooldown_sec"`
	RequestTimeoutMS int     `yaml:"request_timeout_ms"`
	SampleRate       int     `yaml:"sample_rate"`
	BitrateBPS       int     `yaml:"bitrate_bps"`
}

type AlignmentConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Command       string `yaml:"command"`
	AcousticModel string `yaml:"acoustic_model"`
	Dictionary    string `yaml:"dictionary"`
	FFmpegCommand string `yaml:"ffmpeg_command"`
	TimeoutSec    int    `yaml:"timeout_sec"`
}

type ProbeConfig struct {
	FFprobeCommand string `yaml:"ffprobe_command"`
	TimeoutSec     int    `yaml:"timeout_sec"`
}

type ProgressConfig struct {
	SweepIntervalSec int `yaml:"sweep_interval_sec"`
	SessionTTLSec    int `yaml:"session_ttl_sec"`
}

type ServiceConfig struct {
	Enabled bool `yaml:"enabled"`
	// RequestTimeoutSec bounds one synthesis request end to end. Zero means
	// no overall deadline beyond the per-call timeouts.
	RequestTimeoutSec int `yaml:"request_timeout_sec"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Synthesis   SynthesisConfig `yaml:"synthesis"`
	Alignment   AlignmentConfig `yaml:"alignment"`
	Probe       ProbeConfig     `yaml:"probe"`
	Progress    ProgressConfig  `yaml:"progress"`
	Service     ServiceConfig   `yaml:"service"`
}

func Default() Config {
	return Config{
		RuntimeName: "fasttts-core",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Synthesis: SynthesisConfig{
			Mode:             "mock",
			Endpoint:         "https://api.minimax.io/v1/t2a_v2",
			Model:            "speech-02-turbo",
			Speed:            1.0,
			Volume:           0.8,
			ChunkWords:       120,
			CallsPerMinute:   58,
			RateCooldownSec:  20,
			RequestTimeoutMS: 60000,
			SampleRate:       32000,
			BitrateBPS:       128000,
		},
		Alignment: AlignmentConfig{
			Enabled:       true,
			Command:       "mfa",
			AcousticModel: "mandarin_mfa",
			Dictionary:    "mandarin_mfa",
			FFmpegCommand: "ffmpeg",
			TimeoutSec:    120,
		},
		Probe: ProbeConfig{
			FFprobeCommand: "ffprobe",
			TimeoutSec:     10,
		},
		Progress: ProgressConfig{
			SweepIntervalSec: 60,
			SessionTTLSec:    600,
		},
		Service: ServiceConfig{
			Enabled: true,
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
	overrideString(&cfg.RuntimeName, "FASTTTS_RUNTIME_NAME")
	overrideString(&cfg.Environment, "FASTTTS_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "FASTTTS_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "FASTTTS_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "FASTTTS_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "FASTTTS_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "FASTTTS_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "FASTTTS_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "FASTTTS_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "FASTTTS_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "FASTTTS_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "FASTTTS_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "FASTTTS_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "FASTTTS_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "FASTTTS_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "FASTTTS_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Synthesis.Mode, "FASTTTS_SYNTHESIS_MODE")
	overrideString(&cfg.Synthesis.Endpoint, "FASTTTS_SYNTHESIS_ENDPOINT")
	overrideString(&cfg.Synthesis.APIKey, "FASTTTS_SYNTHESIS_API_KEY")
	overrideString(&cfg.Synthesis.GroupID, "FASTTTS_SYNTHESIS_GROUP_ID")
	overrideString(&cfg.Synthesis.Model, "FASTTTS_SYNTHESIS_MODEL")
	overrideString(&cfg.Synthesis.Command, "FASTTTS_SYNTHESIS_COMMAND")
	overrideString(&cfg.Synthesis.DefaultVoice, "FASTTTS_SYNTHESIS_DEFAULT_VOICE")
	overrideFloat(&cfg.Synthesis.Speed, "FASTTTS_SYNTHESIS_SPEED")
	overrideFloat(&cfg.Synthesis.Volume, "FASTTTS_SYNTHESIS_VOLUME")
	overrideInt(&cfg.Synthesis.ChunkWords, "FASTTTS_SYNTHESIS_CHUNK_WORDS")
	overrideInt(&cfg.Synthesis.CallsPerMinute, "FASTTTS_SYNTHESIS_CALLS_PER_MINUTE")
	overrideInt(&cfg.Synthesis.RateCooldownSec, "FASTTTS_SYNTHESIS_RATE_COOLDOWN_SEC")
	overrideInt(&cfg.Synthesis.RequestTimeoutMS, "FASTTTS_SYNTHESIS_REQUEST_TIMEOUT_MS")
	overrideInt(&cfg.Synthesis.SampleRate, "FASTTTS_SYNTHESIS_SAMPLE_RATE")
	overrideInt(&cfg.Synthesis.BitrateBPS, "FASTTTS_SYNTHESIS_BITRATE_BPS")
	overrideBool(&cfg.Alignment.Enabled, "FASTTTS_ALIGNMENT_ENABLED")
	overrideString(&cfg.Alignment.Command, "FASTTTS_ALIGNMENT_COMMAND")
	overrideString(&cfg.Alignment.AcousticModel, "FASTTTS_ALIGNMENT_ACOUSTIC_MODEL")
	overrideString(&cfg.Alignment.Dictionary, "FASTTTS_ALIGNMENT_DICTIONARY")
	overrideString(&cfg.Alignment.FFmpegCommand, "FASTTTS_ALIGNMENT_FFMPEG_COMMAND")
	overrideInt(&cfg.Alignment.TimeoutSec, "FASTTTS_ALIGNMENT_TIMEOUT_SEC")
	overrideString(&cfg.Probe.FFprobeCommand, "FASTTTS_PROBE_FFPROBE_COMMAND")
	overrideInt(&cfg.Probe.TimeoutSec, "FASTTTS_PROBE_TIMEOUT_SEC")
	overrideInt(&cfg.Progress.SweepIntervalSec, "FASTTTS_PROGRESS_SWEEP_INTERVAL_SEC")
	overrideInt(&cfg.Progress.SessionTTLSec, "FASTTTS_PROGRESS_SESSION_TTL_SEC")
	overrideBool(&cfg.Service.Enabled, "FASTTTS_SERVICE_ENABLED")
	overrideInt(&cfg.Service.RequestTimeoutSec, "FASTTTS_SERVICE_REQUEST_TIMEOUT_SEC")
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
	switch cfg.Synthesis.Mode {
	case "minimax", "exec", "mock":
	default:
		return errors.New("synthesis.mode must be one of minimax|exec|mock")
	}
	if cfg.Synthesis.Mode == "minimax" {
		if cfg.Synthesis.Endpoint == "" {
			return errors.New("synthesis.endpoint must be set when mode=minimax")
		}
		if cfg.Synthesis.APIKey == "" || cfg.Synthesis.GroupID == "" {
			return errors.New("synthesis.api_key and synthesis.group_id must be set when mode=minimax")
		}
	}
	if cfg.Synthesis.Mode == "exec" && cfg.Synthesis.Command == "" {
		return errors.New("synthesis.command must be set when mode=exec")
	}
	if cfg.Synthesis.ChunkWords <= 0 {
		return errors.New("synthesis.chunk_words must be positive")
	}
	if cfg.Synthesis.CallsPerMinute <= 0 {
		return errors.New("synthesis.calls_per_minute must be positive")
	}
	if cfg.Synthesis.RateCooldownSec < 0 {
		return errors.New("synthesis.rate_cooldown_sec must be >= 0")
	}
	if cfg.Synthesis.Speed <= 0 {
		return errors.New("synthesis.speed must be positive")
	}
	if cfg.Synthesis.Volume <= 0 || cfg.Synthesis.Volume > 1 {
		return errors.New("synthesis.volume must be in (0, 1]")
	}
	if cfg.Synthesis.BitrateBPS <= 0 {
		return errors.New("synthesis.bitrate_bps must be positive")
	}
	if cfg.Alignment.Enabled {
		if cfg.Alignment.Command == "" {
			return errors.New("alignment.command must not be empty when alignment is enabled")
		}
		if cfg.Alignment.AcousticModel == "" || cfg.Alignment.Dictionary == "" {
			return errors.New("alignment.acoustic_model and alignment.dictionary must not be empty")
		}
		if cfg.Alignment.TimeoutSec <= 0 {
			return errors.New("alignment.timeout_sec must be positive")
		}
	}
	if cfg.Probe.TimeoutSec <= 0 {
		return errors.New("probe.timeout_sec must be positive")
	}
	if cfg.Service.RequestTimeoutSec < 0 {
		return errors.New("service.request_timeout_sec must be >= 0")
	}
	if cfg.Progress.SessionTTLSec <= 0 {
		return errors.New("progress.session_ttl_sec must be positive")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	return nil
}
