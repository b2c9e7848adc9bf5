package wire

import (
	"context"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"gochat/internal/bodycrypt"
	"gochat/internal/chat/repository"
	"gochat/internal/chat/service"
	"gochat/internal/common"
	"gochat/internal/config"
	"gochat/internal/dbmongo"
	"gochat/internal/dbmysql"
	"gochat/internal/fanout"
	"gochat/internal/logger"
	"gochat/internal/media"
	"gochat/internal/user"
)

// Application is everything cmd/chat-svc needs to serve.
type Application struct {
	Config  *config.Config
	Service service.ChatService
	Router  *mux.Router
	Tokens  *common.TokenManager
	Events  *fanout.Manager
	GRPCHub *fanout.GRPCHub
	Relay   *fanout.RedisRelay // nil unless redis is enabled
	Janitor *service.Janitor
}

// InstanceID tags events this process publishes to redis so the relay can
// skip its own echoes.
type InstanceID string

func ProvideConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Server.Environment, cfg.Logging.Level)
	return cfg, nil
}

func ProvideInstanceID() InstanceID {
	return InstanceID(uuid.NewString())
}

// ProvideDatabase returns a nil *gorm.DB for the memory driver.
func ProvideDatabase(cfg *config.Config) (*gorm.DB, func(), error) {
	if cfg.Database.Driver == "memory" {
		logger.Get().Warn().Msg("using in-memory store, data is lost on restart")
		return nil, func() {}, nil
	}
	db, err := dbmysql.NewDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := dbmysql.Close(db); err != nil {
			logger.Get().Error().Err(err).Msg("closing database")
		}
	}
	return db, cleanup, nil
}

func ProvideStore(db *gorm.DB) repository.Store {
	if db == nil {
		return repository.NewMemoryStore()
	}
	return repository.NewGormStore(db)
}

func ProvideUserDirectory(db *gorm.DB) service.UserDirectory {
	if db == nil {
		return nil
	}
	return user.NewDirectory(user.NewUserRepository(db))
}

// ProvideMediaStorage uses GridFS when mongo is enabled and the relational
// store is persistent; otherwise blobs live in memory.
func ProvideMediaStorage(cfg *config.Config) (media.Storage, func(), error) {
	if !cfg.MongoDB.Enabled || cfg.Database.Driver == "memory" {
		return media.NewMemoryStorage(), func() {}, nil
	}
	client, err := dbmongo.NewMongoConnection(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := client.Close(context.Background()); err != nil {
			logger.Get().Error().Err(err).Msg("closing mongo")
		}
	}
	return dbmongo.NewMediaStorage(client), cleanup, nil
}

func ProvideBlobStore(storage media.Storage) service.BlobStore {
	return storage
}

// ProvideCipher returns a nil BodyCipher when no key is configured. The
// explicit nil keeps a typed nil pointer out of the interface.
func ProvideCipher(cfg *config.Config) (service.BodyCipher, error) {
	c, err := bodycrypt.FromConfig(cfg.Encryption.Key)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}
	return c, nil
}

func ProvideRedisClient(cfg *config.Config) (*redis.Client, func()) {
	if !cfg.Redis.Enabled {
		return nil, func() {}
	}
	client := fanout.NewRedisClient(cfg)
	return client, func() { _ = client.Close() }
}

// ProvideEventManager subscribes every configured observer.
func ProvideEventManager(cfg *config.Config, hub *fanout.Hub, grpcHub *fanout.GRPCHub, rdb *redis.Client, id InstanceID) (*fanout.Manager, func()) {
	manager := fanout.NewManagerFromConfig(cfg)
	manager.Subscribe(hub)
	manager.Subscribe(grpcHub)
	if rdb != nil {
		manager.Subscribe(fanout.NewRedisPublisher(rdb, cfg.Redis.ChannelPrefix, string(id)))
	}

	var kafkaPub *fanout.KafkaPublisher
	if cfg.Kafka.Enabled {
		kafkaPub = fanout.NewKafkaPublisher(fanout.NewKafkaWriter(cfg))
		manager.Subscribe(kafkaPub)
	}

	cleanup := func() {
		manager.Shutdown()
		hub.Close()
		if kafkaPub != nil {
			if err := kafkaPub.Close(); err != nil {
				logger.Get().Error().Err(err).Msg("closing kafka writer")
			}
		}
	}
	return manager, cleanup
}

func ProvideRelay(cfg *config.Config, rdb *redis.Client, hub *fanout.Hub, grpcHub *fanout.GRPCHub, id InstanceID) *fanout.RedisRelay {
	if rdb == nil {
		return nil
	}
	return fanout.NewRedisRelay(rdb, cfg.Redis.ChannelPrefix, string(id), hub, grpcHub)
}

func ProvideJanitor(cfg *config.Config, svc service.ChatService) *service.Janitor {
	return service.NewJanitor(svc, cfg.Chat.ExpiryInterval)
}
