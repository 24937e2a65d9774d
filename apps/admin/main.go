package main

import (
	"context"
	"fmt"
	"os"

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

func main() {
	conf := core.NewConfig()
	zl := logsvc.NewZerolog(conf.Logging, os.Stderr)
	logger := logsvc.NewRollbarLogger(zl.With().Str("component", "admin").Logger(), conf)
	logger.Enable(!conf.Debug)

	cli := commandLine{conf: conf, out: os.Stdout}

	// migrations manage their own connection
	if len(os.Args) < 2 || os.Args[1] != "migrate" {
		repos, err := storage.Open(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() { _ = repos.Close() }()

		publisher, err := events.New(conf.Events, zl.With().Str("component", "events").Logger())
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up events: %v", err), err)
		}
		defer func() { _ = publisher.Close() }()

		files, err := filestore.New(context.Background(), conf.Storage)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up file storage: %v", err), err)
		}

		mailSvc := emailsvc.NewConsoleService(conf, logger)
		cli.usrRepo = repos.Users
		cli.usrSvc = user.NewService(repos.DB, repos.Users, mailSvc)
		cli.courseRepo = repos.Courses
		cli.courseSvc = course.NewService(repos.DB, repos.Courses, cli.usrSvc, mailSvc, publisher)
		cli.taskSvc = task.NewService(repos.DB, repos.Tasks, cli.courseSvc, cli.usrSvc, files, mailSvc, publisher)
		cli.announcementSvc = announcement.NewService(repos.Announcements, cli.courseSvc, cli.usrSvc, mailSvc)
	}

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
