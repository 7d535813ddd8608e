package main

import (
	"github.com/sahilchouksey/univast-api/app"
	"github.com/sahilchouksey/univast-api/utils/logger"
)

func main() {
	if err := app.SetupAndRunServer(); err != nil {
		logger.New("info", "text").WithError(err).Fatal("univast-api stopped")
	}
}
