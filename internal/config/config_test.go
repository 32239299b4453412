package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
database:
  host: localhost
  port: 3306
  user: app
  password: secret
  name: proficiency
corpus:
  path: /data/comparisons.csv
`))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "./samples", cfg.Sample.Root)
	assert.Equal(t, 10, cfg.Sample.GroupsPerSample)
	assert.Equal(t, 11, cfg.Sample.ImagesPerGroup)
	assert.InDelta(t, 0.85, cfg.Sample.HasSameSourceProbability, 1e-9)
	assert.InDelta(t, 10, cfg.Degradation.MinAreaPercent, 1e-9)
	assert.InDelta(t, 25, cfg.Degradation.MaxAreaPercent, 1e-9)
	assert.InDelta(t, 0.1, cfg.Degradation.MinEccentricity, 1e-9)
	assert.InDelta(t, 0.5, cfg.Degradation.MaxEccentricity, 1e-9)
	assert.Equal(t, 800, cfg.Images.DisplayWidth)
	assert.Equal(t, 10, cfg.RateLimit.Capacity)
}

func TestLoad_ExplicitValuesWin(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9090
database:
  driver: postgres
sample:
  groupsPerSample: 4
  imagesPerGroup: 6
  hasSameSourceProbability: 0.5
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 4, cfg.Sample.GroupsPerSample)
	assert.Equal(t, 6, cfg.Sample.ImagesPerGroup)
	assert.InDelta(t, 0.5, cfg.Sample.HasSameSourceProbability, 1e-9)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDSNBuilders(t *testing.T) {
	var cfg Config
	cfg.Database.Host = "db"
	cfg.Database.Port = 5432
	cfg.Database.User = "app"
	cfg.Database.Password = "secret"
	cfg.Database.Name = "proficiency"

	assert.Equal(t,
		"app:secret@tcp(db:5432)/proficiency?parseTime=true&charset=utf8mb4&loc=UTC",
		cfg.MySQLDSN())
	assert.Equal(t,
		"host=db port=5432 user=app password=secret dbname=proficiency sslmode=disable",
		cfg.PostgresDSN())
}
