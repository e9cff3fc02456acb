package main

import (
	"github.com/MaxDreger92/matgraph-backend/internal/server"
	"github.com/MaxDreger92/matgraph-backend/internal/util"
	"github.com/MaxDreger92/matgraph-backend/pkg/logger"
	"github.com/MaxDreger92/matgraph-backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
