package main

import (
	"github.com/bidworks/clearhouse/internal/clock"
	"github.com/bidworks/clearhouse/internal/config"
	"github.com/bidworks/clearhouse/internal/migration"
	"github.com/bidworks/clearhouse/internal/observability"
	"github.com/bidworks/clearhouse/internal/scheduler"
	"github.com/bidworks/clearhouse/internal/server"
	"github.com/bidworks/clearhouse/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// HTTP surface plus the domain modules it serves
		server.Module,

		// Background sweeps and schema management
		scheduler.Module,
		migration.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
