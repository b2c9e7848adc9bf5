//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/google/wire"

	"gochat/internal/chat/handler"
	"gochat/internal/chat/service"
	"gochat/internal/common"
	"gochat/internal/fanout"
	"gochat/internal/media"
)

func InitializeApplication() (*Application, func(), error) {
	wire.Build(
		ProvideConfig,
		ProvideInstanceID,
		ProvideDatabase,
		ProvideStore,
		ProvideUserDirectory,
		ProvideMediaStorage,
		ProvideBlobStore,
		ProvideCipher,
		ProvideRedisClient,
		fanout.NewHub,
		fanout.NewGRPCHub,
		ProvideEventManager,
		wire.Bind(new(service.Notifier), new(*fanout.Manager)),
		ProvideRelay,
		service.OptionsFromConfig,
		service.NewChatService,
		ProvideJanitor,
		common.NewTokenManager,
		media.NewHTTPServer,
		handler.NewChatHandler,
		handler.NewRouter,
		wire.Struct(new(Application), "*"),
	)
	return nil, nil, nil
}
