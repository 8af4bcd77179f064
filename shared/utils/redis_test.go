package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheHelpersRequireClient(t *testing.T) {
	prev := RedisClient
	RedisClient = nil
	defer func() { RedisClient = prev }()

	assert.Error(t, CacheSet("clinic:connections:acme", "1", time.Minute))

	_, err := CacheGet("clinic:connections:acme")
	assert.Error(t, err)

	assert.Error(t, CacheDelete("clinic:connections:acme"))
}
