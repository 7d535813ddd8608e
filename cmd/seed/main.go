package main

import (
	"os"

	"github.com/sahilchouksey/univast-api/config"
	"github.com/sahilchouksey/univast-api/database"
	"github.com/sahilchouksey/univast-api/utils/logger"
)

func main() {
	log := logger.New("info", "text")

	// Load environment variables
	if err := config.LoadENV(); err != nil {
		log.WithError(err).Warn(".env file not loaded, using system environment variables")
	}

	cfg, err := config.Get()
	if err != nil {
		log.WithError(err).Fatal("failed to read configuration")
	}

	store, err := database.StartGORM(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}

	err = database.RunSeeds(store.GetDB(), database.AdminCredentials{
		Username: os.Getenv("ADMIN_USERNAME"),
		Email:    os.Getenv("ADMIN_EMAIL"),
		Password: os.Getenv("ADMIN_PASSWORD"),
	}, log)
	if err != nil {
		log.WithError(err).Fatal("seeding failed")
	}

	log.Info("seeding completed")
}
