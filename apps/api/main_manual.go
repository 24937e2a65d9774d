package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/edusys/apps/api/echo"
	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/announcement"
	"github.com/trezcool/edusys/core/course"
	"github.com/trezcool/edusys/core/task"
	"github.com/trezcool/edusys/core/user"
	emailsvc "github.com/trezcool/edusys/services/email"
	"github.com/trezcool/edusys/services/events"
	"github.com/trezcool/edusys/services/filestore"
	logsvc "github.com/trezcool/edusys/services/logger"
	"github.com/trezcool/edusys/storage"
)

func startManual() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	zl := logsvc.NewZerolog(conf.Logging, os.Stdout)
	logger := logsvc.NewRollbarLogger(zl.With().Str("component", "api").Logger(), conf)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(zl.With().Str("component", "db").Logger(), conf)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	repos, err := storage.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up side effects
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf)
	}

	files, err := filestore.New(context.Background(), conf.Storage)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file storage: %v", err), err)
	}

	publisher, err := events.New(conf.Events, zl.With().Str("component", "events").Logger())
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up events: %v", err), err)
	}
	defer func() { _ = publisher.Close() }()

	// set up services
	usrSvc := user.NewService(repos.DB, repos.Users, mailSvc)
	courseSvc := course.NewService(repos.DB, repos.Courses, usrSvc, mailSvc, publisher)
	taskSvc := task.NewService(repos.DB, repos.Tasks, courseSvc, usrSvc, files, mailSvc, publisher)
	announcementSvc := announcement.NewService(repos.Announcements, courseSvc, usrSvc, mailSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)
	announcement.RegisterValidators(validate, translator)

	core.ParseEmailTemplates(logger)

	shutdown := make(chan error, 1)
	server := echoapi.NewServer(&echoapi.Options{
		Conf:            conf,
		Logger:          logger,
		Validate:        validate,
		Translator:      translator,
		Shutdown:        shutdown,
		UserSvc:         usrSvc,
		CourseSvc:       courseSvc,
		TaskSvc:         taskSvc,
		AnnouncementSvc: announcementSvc,
	})

	serve(conf, logger, server, shutdown)
}
