package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"cnec-platform/internal/httpapi"
	"cnec-platform/internal/server"
	"cnec-platform/pkg/config"
	"cnec-platform/pkg/db"
	"cnec-platform/pkg/logger"
	"cnec-platform/pkg/objectstore"
	"cnec-platform/pkg/redis"
	"cnec-platform/pkg/sequence"
	"cnec-platform/pkg/task"
	"cnec-platform/services/application"
	"cnec-platform/services/campaign"
	"cnec-platform/services/deadline"
	"cnec-platform/services/ledger"
	"cnec-platform/services/notification"
	"cnec-platform/services/submission"
	"cnec-platform/services/withdrawal"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		sequence.Module,
		objectstore.Module,
		task.Client,
		fx.Provide(provideSnowflakeNode),
		notification.Module,
		campaign.Module,
		ledger.Module,
		submission.Module,
		application.Module,
		withdrawal.Module,
		deadline.Module,
		httpapi.Module,
		server.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
