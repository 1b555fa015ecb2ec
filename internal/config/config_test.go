package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/judgeproxy/internal/domain/judges"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.dify.ai/v1", cfg.Upstream.BaseURL)
	assert.Len(t, cfg.JudgeList(), 8)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Judges)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  port: 9090
upstream:
  baseURL: http://dify.local/v1
  timeout: 30s
judges:
  - id: business
    name: Business Analysis
    apiKey: app-123
    requireRepository: true
    persist: true
  - id: gpt
    kind: openai
    model: gpt-4o-mini
persistence:
  driver: sqlite
  dsn: ":memory:"
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, ":memory:", cfg.PersistenceDSN())

	list := cfg.JudgeList()
	require.Len(t, list, 2)
	assert.Equal(t, judges.ID("business"), list[0].ID)
	assert.Equal(t, "app-123", list[0].Credential)
	assert.True(t, list[0].Persist)
	assert.Equal(t, judges.KindOpenAI, list[1].Kind)
	assert.Equal(t, "gpt", list[1].DisplayName)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"JUDGEPROXY_PORT":     "7070",
		"DIFY_API_URL":        "http://example/v1",
		"JUDGE_PAUL_API_KEY":  "app-paul",
		"JUDGEPROXY_API_KEYS": "web:k1, ops:k2",
		"DIFY_WEBHOOK_SECRET": "s3cret",
		"PERSISTENCE_DRIVER":  "postgres",
	}
	require.NoError(t, cfg.applyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "http://example/v1", cfg.Upstream.BaseURL)
	assert.Equal(t, map[string]string{"web": "k1", "ops": "k2"}, cfg.Server.APIKeys)
	assert.Equal(t, "s3cret", cfg.Upstream.WebhookSecret)
	for _, j := range cfg.JudgeList() {
		if j.ID == "paul" {
			assert.Equal(t, "app-paul", j.Credential)
		}
	}

	bad := Default()
	err := bad.applyEnv(func(k string) string {
		if k == "JUDGEPROXY_API_KEYS" {
			return "missing-colon"
		}
		return ""
	})
	assert.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	dup := Default()
	dup.Judges = append(dup.Judges, JudgeConfig{ID: "paul"})
	assert.ErrorContains(t, dup.Validate(), "duplicate judge id")

	kind := Default()
	kind.Judges[0].Kind = "carrier-pigeon"
	assert.ErrorContains(t, kind.Validate(), "unknown kind")

	for _, id := range []string{"my-judge", "Paul", "paul graham"} {
		bad := Default()
		bad.Judges[0].ID = id
		assert.ErrorContains(t, bad.Validate(), "lowercase letters", id)
	}

	port := Default()
	port.Server.Port = 0
	assert.Error(t, port.Validate())

	driver := Default()
	driver.Persistence.Driver = "oracle"
	assert.Error(t, driver.Validate())
}

func TestPersistenceDSN_Built(t *testing.T) {
	cfg := Default()
	cfg.Persistence.Driver = "mysql"
	cfg.Persistence.Database.Host = "db"
	cfg.Persistence.Database.Port = 3306
	cfg.Persistence.Database.User = "u"
	cfg.Persistence.Database.Password = "p"
	cfg.Persistence.Database.Name = "judge"
	assert.Equal(t, "u:p@tcp(db:3306)/judge?parseTime=true&charset=utf8mb4&loc=UTC", cfg.PersistenceDSN())

	cfg.Persistence.Driver = "postgres"
	assert.Contains(t, cfg.PersistenceDSN(), "dbname=judge")
}
