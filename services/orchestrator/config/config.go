// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config builds the service configuration once at startup.
//
// # Description
//
// Values are layered, later layers winning:
//
//  1. Defaults (DefaultConfig)
//  2. An optional YAML file
//  3. COPYSTUDIO_* environment variables
//  4. Command-line flags, applied by the caller
//
// The provider credential is resolved separately by ResolveCredential and
// held in a memguard enclave. It is never written to the YAML file or logs.
package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/CopyStudio/services/llm"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/resilience"
)

// ErrMissingCredential means no provider credential was found. The service
// still serves CRUD endpoints; generation endpoints answer 503.
var ErrMissingCredential = errors.New("provider credential not configured")

// EnvPrefix prefixes every environment override.
const EnvPrefix = "COPYSTUDIO_"

// =============================================================================
// Config Types
// =============================================================================

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port int `yaml:"port"`

	// AccessToken, when set, is required as a bearer token on /v1 routes.
	AccessToken string `yaml:"access_token,omitempty"`
}

// LLMConfig selects and tunes the provider backend.
type LLMConfig struct {
	Backend string        `yaml:"backend"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
	BaseURL string        `yaml:"base_url,omitempty"`

	// APIKeyVar names the credential variable. Defaults per backend.
	APIKeyVar string `yaml:"api_key_var,omitempty"`

	// RequestsPerSecond bounds provider calls across all requests. 0
	// disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// RetryConfig mirrors resilience.Policy.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	MaxJitter   time.Duration `yaml:"max_jitter"`
}

// StorageConfig locates persisted data.
type StorageConfig struct {
	// DataDir holds the launch database.
	DataDir string `yaml:"data_dir"`

	// TrainingDir holds training documents, persona documents and the
	// product catalog.
	TrainingDir string `yaml:"training_dir"`

	// CatalogFile overrides the embedded persona, tier and channel catalog.
	CatalogFile string `yaml:"catalog_file,omitempty"`
}

// Trace exporters.
const (
	TraceExporterOTLP   = "otlp"
	TraceExporterStdout = "stdout"
	TraceExporterNone   = "none"
)

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	// Exporter is "otlp", "stdout" or "none". Empty means "otlp" when
	// OTLPEndpoint is set and "none" otherwise.
	Exporter string `yaml:"exporter,omitempty"`

	// OTLPEndpoint is the collector's gRPC address, e.g. "localhost:4317".
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
	ServiceName  string `yaml:"service_name"`
}

// ResolvedExporter applies the empty-Exporter default.
func (t TracingConfig) ResolvedExporter() string {
	if t.Exporter != "" {
		return t.Exporter
	}
	if t.OTLPEndpoint != "" {
		return TraceExporterOTLP
	}
	return TraceExporterNone
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json"`
}

// Config is the full service configuration. Build it with Load and pass
// it by pointer; it is read-only after startup.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	Retry   RetryConfig   `yaml:"retry"`
	Storage StorageConfig `yaml:"storage"`
	Tracing TracingConfig `yaml:"tracing"`
	Logging LoggingConfig `yaml:"logging"`

	// EnvFile is the dotenv fallback for the credential.
	EnvFile string `yaml:"env_file"`

	// SecretsDir is the container secrets fallback for the credential.
	SecretsDir string `yaml:"secrets_dir"`

	credential *memguard.Enclave
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 12210},
		LLM: LLMConfig{
			Backend:           llm.BackendAnthropic,
			Model:             "claude-sonnet-4-20250514",
			Timeout:           180 * time.Second,
			RequestsPerSecond: 4,
			Burst:             8,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    10 * time.Second,
			MaxJitter:   500 * time.Millisecond,
		},
		Storage: StorageConfig{
			DataDir:     "data/launches",
			TrainingDir: "training-data",
		},
		Tracing:    TracingConfig{ServiceName: "copystudio"},
		Logging:    LoggingConfig{Level: "info", JSON: true},
		EnvFile:    ".env.local",
		SecretsDir: "/run/secrets",
	}
}

// =============================================================================
// Loading
// =============================================================================

// Load builds the configuration from defaults, the YAML file at path and
// the environment.
//
// # Inputs
//
//   - path: YAML file. Empty skips the file layer; a named file must exist.
//
// # Outputs
//
//   - *Config: Validated configuration without a credential.
//   - error: Unreadable file, malformed YAML or bad value.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// io.EOF means an empty file.
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	num("PORT", &c.Server.Port)
	str("ACCESS_TOKEN", &c.Server.AccessToken)
	str("LLM_BACKEND", &c.LLM.Backend)
	str("LLM_MODEL", &c.LLM.Model)
	str("LLM_BASE_URL", &c.LLM.BaseURL)
	str("LLM_API_KEY_VAR", &c.LLM.APIKeyVar)
	dur("LLM_TIMEOUT", &c.LLM.Timeout)
	num("RETRY_MAX_ATTEMPTS", &c.Retry.MaxAttempts)
	str("DATA_DIR", &c.Storage.DataDir)
	str("TRAINING_DIR", &c.Storage.TrainingDir)
	str("CATALOG_FILE", &c.Storage.CatalogFile)
	str("OTLP_ENDPOINT", &c.Tracing.OTLPEndpoint)
	str("TRACE_EXPORTER", &c.Tracing.Exporter)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_DIR", &c.Logging.Dir)
	str("ENV_FILE", &c.EnvFile)
	str("SECRETS_DIR", &c.SecretsDir)
	return errors.Join(errs...)
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.LLM.Backend {
	case llm.BackendAnthropic, llm.BackendOpenAI, llm.BackendGemini:
	default:
		errs = append(errs, fmt.Errorf("llm.backend %q is not one of anthropic, openai, gemini", c.LLM.Backend))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, errors.New("llm.timeout must be positive"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		errs = append(errs, errors.New("retry delays must satisfy 0 <= base_delay <= max_delay"))
	}
	switch c.Tracing.ResolvedExporter() {
	case TraceExporterStdout, TraceExporterNone:
	case TraceExporterOTLP:
		if c.Tracing.OTLPEndpoint == "" {
			errs = append(errs, errors.New("tracing.otlp_endpoint is required for the otlp exporter"))
		}
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter %q is not one of otlp, stdout, none", c.Tracing.Exporter))
	}
	if c.Storage.TrainingDir == "" || c.Storage.DataDir == "" {
		errs = append(errs, errors.New("storage.data_dir and storage.training_dir are required"))
	}
	return errors.Join(errs...)
}

// RetryPolicy converts the retry section to a resilience.Policy.
func (c *Config) RetryPolicy() resilience.Policy {
	p := resilience.DefaultPolicy()
	p.MaxAttempts = c.Retry.MaxAttempts
	p.BaseDelay = c.Retry.BaseDelay
	p.MaxDelay = c.Retry.MaxDelay
	p.MaxJitter = c.Retry.MaxJitter
	return p
}

// ProductsFile is the product catalog path inside the training directory.
func (c *Config) ProductsFile() string {
	return filepath.Join(c.Storage.TrainingDir, "products", "products.json")
}

// =============================================================================
// Credential
// =============================================================================

// APIKeyVar is the credential variable name for the configured backend.
func (c *Config) APIKeyVar() string {
	if c.LLM.APIKeyVar != "" {
		return c.LLM.APIKeyVar
	}
	switch c.LLM.Backend {
	case llm.BackendOpenAI:
		return "OPENAI_API_KEY"
	case llm.BackendGemini:
		return "GEMINI_API_KEY"
	default:
		return "ANTHROPIC_API_KEY"
	}
}

// ResolveCredential looks up the credential in the environment, then the
// dotenv file, then the secrets directory, and seals the first one found.
//
// # Outputs
//
//   - string: Where the credential came from ("env", "env_file",
//     "secrets"), for logging.
//   - error: ErrMissingCredential when no source has it.
func (c *Config) ResolveCredential() (string, error) {
	name := c.APIKeyVar()

	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		c.seal(v)
		return "env", nil
	}
	if c.EnvFile != "" {
		v, err := readDotenv(c.EnvFile, name)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read %s: %w", c.EnvFile, err)
		}
		if v != "" {
			c.seal(v)
			return "env_file", nil
		}
	}
	if c.SecretsDir != "" {
		for _, file := range []string{strings.ToLower(name), name} {
			data, err := os.ReadFile(filepath.Join(c.SecretsDir, file))
			if err != nil {
				continue
			}
			if v := strings.TrimSpace(string(data)); v != "" {
				c.seal(v)
				return "secrets", nil
			}
		}
	}
	return "", fmt.Errorf("%w: set %s", ErrMissingCredential, name)
}

func (c *Config) seal(v string) {
	c.credential = memguard.NewEnclave([]byte(v))
}

// HasCredential reports whether ResolveCredential found a credential.
func (c *Config) HasCredential() bool { return c.credential != nil }

// APIKey opens the enclave. The caller should keep the returned string only
// as long as the client that needs it.
func (c *Config) APIKey() (string, error) {
	if c.credential == nil {
		return "", ErrMissingCredential
	}
	buf, err := c.credential.Open()
	if err != nil {
		return "", fmt.Errorf("open credential enclave: %w", err)
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}

// ClientConfig is the llm.ClientConfig for this configuration.
func (c *Config) ClientConfig() (llm.ClientConfig, error) {
	key, err := c.APIKey()
	if err != nil {
		return llm.ClientConfig{}, err
	}
	return llm.ClientConfig{
		Backend: c.LLM.Backend,
		APIKey:  key,
		Model:   c.LLM.Model,
		Timeout: c.LLM.Timeout,
		BaseURL: c.LLM.BaseURL,
	}, nil
}

// readDotenv returns the value of name from a KEY=value file. Comments,
// blank lines and an "export " prefix are allowed; surrounding quotes are
// stripped.
func readDotenv(path, name string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) != name {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.TrimPrefix(value, `"`)
		value = strings.TrimSuffix(value, `"`)
		value = strings.TrimPrefix(value, `'`)
		value = strings.TrimSuffix(value, `'`)
		return value, nil
	}
	return "", sc.Err()
}
