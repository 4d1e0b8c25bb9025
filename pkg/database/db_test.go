package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"hums/backend/config"
)

func TestConfigurePool(t *testing.T) {
	var (
		maxOpen, maxIdle   int
		lifetime, idleTime time.Duration
	)
	apply := func(cfg *config.DatabaseConfig) {
		maxOpen, maxIdle, lifetime, idleTime = 0, 0, 0, 0
		configurePool(cfg,
			func(n int) { maxOpen = n },
			func(n int) { maxIdle = n },
			func(d time.Duration) { lifetime = d },
			func(d time.Duration) { idleTime = d },
		)
	}

	apply(&config.DatabaseConfig{})
	assert.Equal(t, defaultMaxOpenConns, maxOpen)
	assert.Equal(t, defaultMaxIdleConns, maxIdle)
	assert.Zero(t, lifetime, "未配置时不限制生命周期")
	assert.Zero(t, idleTime)

	apply(&config.DatabaseConfig{MaxOpenConns: 4, MaxIdleConns: 8, ConnMaxLifetime: 60, ConnMaxIdleTime: 30})
	assert.Equal(t, 4, maxOpen)
	assert.Equal(t, 4, maxIdle, "空闲连接数不应超过最大连接数")
	assert.Equal(t, time.Hour, lifetime)
	assert.Equal(t, 30*time.Minute, idleTime)
}
