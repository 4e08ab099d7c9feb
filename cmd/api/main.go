package main

import (
	"os"

	"sectorscan/cmd"
	"sectorscan/internal/logger"
)

func main() {
	log := logger.New()
	log.Infow("starting api", "commit", os.Getenv("commit_hash"))

	apiHandler, cfg, err := cmd.InitializeDependencies()
	if err != nil {
		log.Fatal(err)
	}
	defer cmd.CloseDependencies(apiHandler)

	err = apiHandler.StartApi(cfg.Api.Port)
	if err != nil {
		log.Fatal(err)
	}
}
