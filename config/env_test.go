package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFilesPrecedence(t *testing.T) {
	require.NoError(t, Load())
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "app.json")
	envPath := filepath.Join(dir, ".env")

	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"app_url":"https://json.example","queue_workers":8,"stripe_currency":"eur"}`), 0o600))
	require.NoError(t, os.WriteFile(envPath, []byte("APP_URL=\"https://dotenv.example/\"\nMAIL_DRIVER=smtp\n# comment\n"), 0o600))
	t.Setenv("MAIL_DRIVER", "sendgrid")

	require.NoError(t, loadFromFiles(jsonPath, envPath))

	assert.Equal(t, "https://dotenv.example", AppURL())
	assert.Equal(t, "sendgrid", MailDriver())
	assert.Equal(t, "eur", StripeCurrency())
	assert.Equal(t, 8, QueueWorkers())
}

func TestMissingFilesFallBackToDefaults(t *testing.T) {
	require.NoError(t, Load())
	dir := t.TempDir()
	require.NoError(t, loadFromFiles(filepath.Join(dir, "nope.json"), filepath.Join(dir, ".env")))

	assert.Equal(t, "sqlite", DatabaseDriver())
	assert.Equal(t, defaultSQLiteDSN, DatabaseDSN())
	assert.Equal(t, "database", KVDriver())
}

func TestUnknownDriverFallsBackToSQLite(t *testing.T) {
	Override(map[string]string{"DB_DRIVER": "oracle", "DATABASE_DSN": ""})
	t.Cleanup(func() { Override(map[string]string{"DB_DRIVER": "sqlite"}) })

	assert.Equal(t, "sqlite", DatabaseDriver())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitList(" a:9092, ,b:9092 "))
	assert.Empty(t, splitList(""))
}
