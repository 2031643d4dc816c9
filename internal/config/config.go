/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned when no credential for the summarization
// capability is configured. The service refuses to start without it.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY must be provided")

// Config holds all configuration for the interviewer
type Config struct {
	Environment string
	Debug       bool

	Server    ServerConfig
	Interview InterviewConfig
	Artifacts ArtifactConfig
	Transcode TranscodeConfig
	OpenAI    OpenAIConfig
	STT       STTConfig
	Summary   SummaryConfig
	TTS       TTSConfig
	Logging   LoggingConfig
	NATS      NATSConfig
	Database  DatabaseConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
	AllowedOrigins []string
	FrontendDir    string
}

// InterviewConfig holds the question source, closing message and session limits
type InterviewConfig struct {
	QuestionsFile  string
	ClosingMessage string
	TurnTimeout    time.Duration // overall deadline for one answer
	MaxSessions    int           // live sessions, the default one included
	SessionIdle    time.Duration // created sessions idle this long are evicted
}

// ArtifactConfig holds the storage area for generated audio
type ArtifactConfig struct {
	Dir    string
	MaxAge time.Duration
}

// TranscodeConfig holds ffmpeg settings for canonical audio conversion
type TranscodeConfig struct {
	FFmpegPath string
	SampleRate int
	Timeout    time.Duration
}

// OpenAIConfig holds the credential shared by the OpenAI-backed capabilities
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

// STTConfig holds Speech-to-Text configuration
type STTConfig struct {
	Backend          string // "openai", "google" or "whisper"
	URL              string // OpenAI-compatible base URL, defaults to OpenAIConfig.BaseURL
	Model            string
	Language         string
	Timeout          time.Duration
	WhisperModelPath string
}

// SummaryConfig holds summarization configuration
type SummaryConfig struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// TTSConfig holds Text-to-Speech service configuration
type TTSConfig struct {
	URL            string // OpenAI-compatible base URL, defaults to OpenAIConfig.BaseURL
	Model          string
	Voice          string
	Speed          float32
	ResponseFormat string // mp3, wav, opus, flac
	MaxConcurrent  int
	Timeout        time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// NATSConfig holds NATS messaging configuration. An empty URL disables publishing.
type NATSConfig struct {
	URL           string
	MaxReconnect  int
	ReconnectWait time.Duration
}

// DatabaseConfig holds the turn journal location. An empty path disables it.
type DatabaseConfig struct {
	Path string
}

// IsDevelopment reports whether the permissive development policy applies
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// Load loads configuration from a .env file (if present) and environment
// variables with defaults
func Load() (*Config, error) {
	// A missing .env file is not an error; the environment may be set directly
	_ = godotenv.Load()

	return loadFromEnv(true)
}

// LoadWithoutCredentials loads configuration for maintenance commands that
// never call the model providers
func LoadWithoutCredentials() (*Config, error) {
	_ = godotenv.Load()

	return loadFromEnv(false)
}

func loadFromEnv(requireCredentials bool) (*Config, error) {
	openAIBaseURL := getEnvString("OPENAI_BASE_URL", "")

	config := &Config{
		Environment: strings.ToLower(getEnvString("ENVIRONMENT", "development")),
		Debug:       getEnvBool("DEBUG", false),
		Server: ServerConfig{
			Host:           getEnvString("INTERVIEWER_HOST", "0.0.0.0"),
			Port:           getEnvInt("INTERVIEWER_PORT", 8000),
			ReadTimeout:    getEnvDuration("INTERVIEWER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getEnvDuration("INTERVIEWER_WRITE_TIMEOUT", 120*time.Second),
			MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 5*1024*1024),
			AllowedOrigins: getEnvList("ALLOWED_ORIGINS"),
			FrontendDir:    getEnvString("FRONTEND_DIR", "frontend"),
		},
		Interview: InterviewConfig{
			QuestionsFile:  getEnvString("INTERVIEW_QUESTIONS_FILE", ""),
			ClosingMessage: getEnvString("INTERVIEW_CLOSING_MESSAGE", "Thank you for participating"),
			TurnTimeout:    getEnvDuration("INTERVIEW_TURN_TIMEOUT", 90*time.Second),
			MaxSessions:    getEnvInt("INTERVIEW_MAX_SESSIONS", 1000),
			SessionIdle:    getEnvDuration("INTERVIEW_SESSION_IDLE", time.Hour),
		},
		Artifacts: ArtifactConfig{
			Dir:    getEnvString("ARTIFACT_DIR", "tmp/audio"),
			MaxAge: getEnvDuration("ARTIFACT_MAX_AGE", 24*time.Hour),
		},
		Transcode: TranscodeConfig{
			FFmpegPath: getEnvString("FFMPEG_PATH", "ffmpeg"),
			SampleRate: getEnvInt("TRANSCODE_SAMPLE_RATE", 16000),
			Timeout:    getEnvDuration("TRANSCODE_TIMEOUT", 30*time.Second),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnvString("OPENAI_API_KEY", ""),
			BaseURL: openAIBaseURL,
		},
		STT: STTConfig{
			Backend:          strings.ToLower(getEnvString("STT_BACKEND", "openai")),
			URL:              getEnvString("STT_URL", openAIBaseURL),
			Model:            getEnvString("STT_MODEL", "whisper-1"),
			Language:         getEnvString("STT_LANGUAGE", ""),
			Timeout:          getEnvDuration("STT_TIMEOUT", 60*time.Second),
			WhisperModelPath: getEnvString("WHISPER_MODEL_PATH", "./models/ggml-base.bin"),
		},
		Summary: SummaryConfig{
			Model:       getEnvString("SUMMARY_MODEL", "gpt-4o-mini"),
			MaxTokens:   getEnvInt("SUMMARY_MAX_TOKENS", 100),
			Temperature: getEnvFloat64("SUMMARY_TEMPERATURE", 0.7),
			Timeout:     getEnvDuration("SUMMARY_TIMEOUT", 30*time.Second),
		},
		TTS: TTSConfig{
			URL:            getEnvString("TTS_URL", openAIBaseURL),
			Model:          getEnvString("TTS_MODEL", "tts-1"),
			Voice:          getEnvString("TTS_VOICE", "alloy"),
			Speed:          getEnvFloat32("TTS_SPEED", 1.0),
			ResponseFormat: getEnvString("TTS_FORMAT", "mp3"),
			MaxConcurrent:  getEnvInt("TTS_MAX_CONCURRENT", 10),
			Timeout:        getEnvDuration("TTS_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "console"),
		},
		NATS: NATSConfig{
			URL:           getEnvString("NATS_URL", ""),
			MaxReconnect:  getEnvInt("NATS_MAX_RECONNECT", 10),
			ReconnectWait: getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		},
		Database: DatabaseConfig{
			Path: getEnvOptional("DB_PATH", "./data/interviewer.db"),
		},
	}

	if config.Debug {
		config.Logging.Level = "debug"
	}

	if err := config.validate(requireCredentials); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validate checks if the configuration is valid
func (c *Config) validate(requireCredentials bool) error {
	if requireCredentials && c.OpenAI.APIKey == "" {
		return ErrMissingAPIKey
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive: %d", c.Server.MaxUploadBytes)
	}

	if c.Interview.TurnTimeout <= 0 {
		return fmt.Errorf("interview turn timeout must be positive: %s", c.Interview.TurnTimeout)
	}

	// The response has to be written after the turn settles
	if c.Server.WriteTimeout > 0 && c.Interview.TurnTimeout >= c.Server.WriteTimeout {
		return fmt.Errorf("interview turn timeout %s must be shorter than the server write timeout %s",
			c.Interview.TurnTimeout, c.Server.WriteTimeout)
	}

	if c.Interview.MaxSessions < 1 {
		return fmt.Errorf("interview max sessions must be at least 1: %d", c.Interview.MaxSessions)
	}

	if c.Artifacts.Dir == "" {
		return fmt.Errorf("artifact directory must be provided")
	}

	if c.Transcode.SampleRate <= 0 {
		return fmt.Errorf("transcode sample rate must be positive: %d", c.Transcode.SampleRate)
	}

	switch c.STT.Backend {
	case "openai", "google", "whisper":
	default:
		return fmt.Errorf("unknown STT backend: %q", c.STT.Backend)
	}

	if c.Summary.MaxTokens <= 0 {
		return fmt.Errorf("summary max tokens must be positive: %d", c.Summary.MaxTokens)
	}

	if c.TTS.MaxConcurrent <= 0 {
		return fmt.Errorf("TTS max concurrent must be positive: %d", c.TTS.MaxConcurrent)
	}

	if c.TTS.Speed <= 0 {
		return fmt.Errorf("TTS speed must be positive: %f", c.TTS.Speed)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOptional is getEnvString, except that an explicitly empty variable
// overrides the default
func getEnvOptional(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatValue)
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty entries
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
