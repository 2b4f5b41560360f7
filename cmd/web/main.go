package main

import (
	"log"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/redgrape/thegrid/internal/web"
	zlog "github.com/redgrape/thegrid/pkg/log"
)

func run() error {
	var logger *zap.Logger
	if path := os.Getenv("GRID_LOG_FILE"); path != "" {
		logger = zlog.InitProdFile(path)
	} else {
		logger = zlog.InitDev()
	}
	defer zlog.Sync()

	return web.Run(logger)
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("%+v\n", err)
	}
}
