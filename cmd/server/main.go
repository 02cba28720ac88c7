package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/ridehail/internal/buildinfo"
	"github.com/dmitrijs2005/ridehail/internal/server"
	"github.com/dmitrijs2005/ridehail/internal/server/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg, buildinfo.Version)

	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}

}
