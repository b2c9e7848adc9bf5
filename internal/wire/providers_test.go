package wire

import (
	"bytes"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gochat/internal/chat/repository"
	"gochat/internal/config"
	"gochat/internal/fanout"
	"gochat/internal/media"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Driver: "memory"},
		MongoDB:  config.MongoConfig{Enabled: true},
		Fanout:   config.FanoutConfig{Workers: 2, ChannelBufferSize: 8},
		Chat:     config.ChatConfig{ExpiryInterval: time.Second},
	}
}

func TestProvidersForMemoryDriver(t *testing.T) {
	cfg := memoryConfig()

	db, cleanup, err := ProvideDatabase(cfg)
	require.NoError(t, err)
	defer cleanup()
	assert.Nil(t, db)

	_, ok := ProvideStore(db).(*repository.MemoryStore)
	assert.True(t, ok)
	assert.Nil(t, ProvideUserDirectory(db))

	storage, cleanupStorage, err := ProvideMediaStorage(cfg)
	require.NoError(t, err)
	defer cleanupStorage()
	_, ok = storage.(*media.MemoryStorage)
	assert.True(t, ok, "mongo is skipped for the memory driver")
}

func TestProvideCipher(t *testing.T) {
	cfg := memoryConfig()

	c, err := ProvideCipher(cfg)
	require.NoError(t, err)
	assert.Nil(t, c, "no key means a nil interface, not a typed nil")

	cfg.Encryption.Key = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	c, err = ProvideCipher(cfg)
	require.NoError(t, err)
	require.NotNil(t, c)
	sealed, err := c.Seal("hello")
	require.NoError(t, err)
	opened, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hello", opened)

	cfg.Encryption.Key = "not-base64!"
	_, err = ProvideCipher(cfg)
	assert.Error(t, err)
}

func TestEventManagerWithoutRedis(t *testing.T) {
	cfg := memoryConfig()
	rdb, closeRedis := ProvideRedisClient(cfg)
	defer closeRedis()
	assert.Nil(t, rdb)

	hub, grpcHub := fanout.NewHub(), fanout.NewGRPCHub()
	manager, cleanup := ProvideEventManager(cfg, hub, grpcHub, rdb, ProvideInstanceID())
	require.NotNil(t, manager)
	assert.Nil(t, ProvideRelay(cfg, rdb, hub, grpcHub, "x"))
	cleanup()
}
