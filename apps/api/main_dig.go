package main

import (
	"fmt"
	"log"

	dig_container "github.com/trezcool/edusys/apps/api/di/dig"
	echoapi "github.com/trezcool/edusys/apps/api/echo"
	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/services/events"
	"github.com/trezcool/edusys/storage"
)

func startWithDig() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		dbLoggerParam dig_container.DBLoggerParam,
		repos *storage.Repositories,
		publisher events.Publisher,
		server echoapi.Server,
		shutdown chan error,
	) {
		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.ParseEmailTemplates(apiLogger)

		dbLogger := dbLoggerParam.Logger
		defer func() {
			if err := repos.Close(); err != nil {
				dbLogger.Error("Failed to close", err)
			}
		}()
		defer func() { _ = publisher.Close() }()
		defer apiLogger.Info("Application stopped")

		serve(conf, apiLogger, server, shutdown)
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
