package main

import (
	"os"

	"github.com/hamgua/alpha-arena-okx/app"
	"github.com/hamgua/alpha-arena-okx/config"
	"github.com/hamgua/alpha-arena-okx/logging"
)

func main() {
	config.Load()
	logging.Init(config.Config.LogLevel, config.Config.LogFormat)

	runner := app.NewRunner()
	if err := runner.Setup(); err != nil {
		logging.L().Fatal().Err(err).Msg("交易所初始化失败")
	}

	mode := os.Getenv("MODE")
	if err := runner.Run(mode); err != nil {
		logging.L().Fatal().Err(err).Msg("启动失败")
	}
}
