// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/CopyStudio/services/llm"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// isolate clears every variable the loader reads.
func isolate(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY",
		EnvPrefix + "PORT", EnvPrefix + "LLM_BACKEND", EnvPrefix + "LLM_MODEL",
		EnvPrefix + "LLM_TIMEOUT", EnvPrefix + "RETRY_MAX_ATTEMPTS",
		EnvPrefix + "TRAINING_DIR", EnvPrefix + "LOG_LEVEL",
		EnvPrefix + "OTLP_ENDPOINT", EnvPrefix + "TRACE_EXPORTER",
	} {
		t.Setenv(name, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, llm.BackendAnthropic, cfg.LLM.Backend)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.LLM.Model)
	assert.Equal(t, 180*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "training-data", cfg.Storage.TrainingDir)
	assert.Equal(t, filepath.Join("training-data", "products", "products.json"), cfg.ProductsFile())
	assert.False(t, cfg.HasCredential())
}

func TestLoad_FileThenEnv(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "copystudio.yaml", `
server:
  port: 9000
llm:
  model: claude-test
  timeout: 30s
retry:
  max_attempts: 5
  base_delay: 200ms
  max_delay: 2s
storage:
  training_dir: /srv/training
  data_dir: /srv/data
`)
	t.Setenv(EnvPrefix+"PORT", "9100")
	t.Setenv(EnvPrefix+"LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "claude-test", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "/srv/training", cfg.Storage.TrainingDir)
	assert.Equal(t, "debug", cfg.Logging.Level)

	p := cfg.RetryPolicy()
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, p.BaseDelay)
	assert.Equal(t, 2*time.Second, p.MaxDelay)
}

func TestLoad_EmptyFile(t *testing.T) {
	isolate(t)
	cfg, err := Load(writeFile(t, t.TempDir(), "empty.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, 12210, cfg.Server.Port)
}

func TestLoad_Errors(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, dir, "unknown.yaml", "bogus: true\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, dir, "backend.yaml", "llm:\n  backend: ollama\n"))
	assert.ErrorContains(t, err, "llm.backend")

	t.Setenv(EnvPrefix+"LLM_TIMEOUT", "soon")
	_, err = Load("")
	assert.ErrorContains(t, err, EnvPrefix+"LLM_TIMEOUT")
}

func TestTracing_Exporter(t *testing.T) {
	assert.Equal(t, TraceExporterNone, TracingConfig{}.ResolvedExporter())
	assert.Equal(t, TraceExporterOTLP, TracingConfig{OTLPEndpoint: "localhost:4317"}.ResolvedExporter())
	assert.Equal(t, TraceExporterStdout, TracingConfig{Exporter: "stdout"}.ResolvedExporter())

	cfg := DefaultConfig()
	cfg.Tracing.Exporter = TraceExporterOTLP
	assert.ErrorContains(t, cfg.Validate(), "tracing.otlp_endpoint")

	cfg.Tracing.Exporter = "zipkin"
	assert.ErrorContains(t, cfg.Validate(), "tracing.exporter")

	cfg.Tracing.Exporter = TraceExporterStdout
	assert.NoError(t, cfg.Validate())
}

func TestResolveCredential_Precedence(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	secrets := filepath.Join(dir, "secrets")
	require.NoError(t, os.MkdirAll(secrets, 0700))

	cfg := DefaultConfig()
	cfg.EnvFile = filepath.Join(dir, ".env.local")
	cfg.SecretsDir = secrets

	_, err := cfg.ResolveCredential()
	assert.ErrorIs(t, err, ErrMissingCredential)
	_, err = cfg.APIKey()
	assert.ErrorIs(t, err, ErrMissingCredential)

	writeFile(t, secrets, "anthropic_api_key", "from-secrets\n")
	source, err := cfg.ResolveCredential()
	require.NoError(t, err)
	assert.Equal(t, "secrets", source)
	key, err := cfg.APIKey()
	require.NoError(t, err)
	assert.Equal(t, "from-secrets", key)

	writeFile(t, dir, ".env.local", "# local\nOTHER=1\nexport ANTHROPIC_API_KEY=\"from-dotenv\"\n")
	source, err = cfg.ResolveCredential()
	require.NoError(t, err)
	assert.Equal(t, "env_file", source)
	key, _ = cfg.APIKey()
	assert.Equal(t, "from-dotenv", key)

	t.Setenv("ANTHROPIC_API_KEY", "  from-env ")
	source, err = cfg.ResolveCredential()
	require.NoError(t, err)
	assert.Equal(t, "env", source)
	key, _ = cfg.APIKey()
	assert.Equal(t, "from-env", key)
	assert.True(t, cfg.HasCredential())
}

func TestResolveCredential_BackendVariable(t *testing.T) {
	isolate(t)
	cfg := DefaultConfig()
	cfg.EnvFile = ""
	cfg.SecretsDir = ""
	cfg.LLM.Backend = llm.BackendOpenAI
	t.Setenv("OPENAI_API_KEY", "sk-test")

	assert.Equal(t, "OPENAI_API_KEY", cfg.APIKeyVar())
	_, err := cfg.ResolveCredential()
	require.NoError(t, err)

	cc, err := cfg.ClientConfig()
	require.NoError(t, err)
	assert.Equal(t, llm.BackendOpenAI, cc.Backend)
	assert.Equal(t, "sk-test", cc.APIKey)
	assert.Equal(t, cfg.LLM.Model, cc.Model)
}

func TestReadDotenv_SingleQuotes(t *testing.T) {
	path := writeFile(t, t.TempDir(), ".env", "ANTHROPIC_API_KEY='quoted'\n")
	v, err := readDotenv(path, "ANTHROPIC_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "quoted", v)
}
