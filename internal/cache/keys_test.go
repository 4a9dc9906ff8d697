package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyNamespace(t *testing.T) {
	assert.Equal(t, "rate:contact:1.2.3.4", ContactRateKey("1.2.3.4"))
	assert.Equal(t, "analytics:2024-01-01", AnalyticsKey("2024-01-01"))
	assert.Equal(t, "github:user:alexchen", GitHubUserKey("alexchen"))
	assert.Equal(t, "github:repos:alexchen", GitHubReposKey("alexchen"))
	assert.Equal(t, "system:status", SystemStatusKey)
}
