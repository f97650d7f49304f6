package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_AllowsChat(t *testing.T) {
	c := &Config{}
	assert.True(t, c.AllowsChat(42), "empty whitelist allows everyone")

	c.Telegram.AllowedChats = []int64{1, -100200}
	assert.True(t, c.AllowsChat(-100200))
	assert.False(t, c.AllowsChat(42))
}

func TestConfig_GetDSN(t *testing.T) {
	c := &Config{}
	c.Postgres.User = "bot"
	c.Postgres.Pass = "secret"
	c.Postgres.Host = "db"
	c.Postgres.Port = 5432
	c.Postgres.Name = "extractor"
	c.Postgres.SslMode = "disable"

	assert.Equal(t, "postgres://bot:secret@db:5432/extractor?sslmode=disable", c.GetDSN())
}

func TestConfig_MaxFileSize(t *testing.T) {
	c := &Config{}
	c.Fetcher.MaxFileSizeMB = 50
	assert.Equal(t, int64(50*1024*1024), c.MaxFileSize())
}
