package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"city.ac.uk"}, cfg.AllowedEmailDomains)
	assert.Equal(t, 60*time.Second, cfg.MySQLConnMaxIdle)
	assert.False(t, cfg.BroadcastExcludeSender)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CORS_ORIGIN", "http://a.test, http://b.test")
	t.Setenv("ALLOWED_EMAIL_DOMAINS", "city.ac.uk,staff.city.ac.uk")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("BROADCAST_EXCLUDE_SENDER", "true")
	t.Setenv("SUPER_USER_EMAIL", "root@city.ac.uk")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Len(t, cfg.CORSOrigins, 2)
	assert.Equal(t, []string{"city.ac.uk", "staff.city.ac.uk"}, cfg.AllowedEmailDomains)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.BroadcastExcludeSender)
	assert.Equal(t, "root@city.ac.uk", cfg.SuperUserEmail)
}
