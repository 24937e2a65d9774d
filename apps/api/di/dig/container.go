package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/dig"

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

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type ServerParam struct {
	dig.In
	Conf            *core.Config
	Logger          core.Logger
	Validate        *validator.Validate
	Translator      ut.Translator
	Shutdown        chan error
	UserSvc         *user.Service
	CourseSvc       *course.Service
	TaskSvc         *task.Service
	AnnouncementSvc *announcement.Service
}

func newZerolog(conf *core.Config) zerolog.Logger {
	return logsvc.NewZerolog(conf.Logging, os.Stdout)
}

func newLogger(conf *core.Config, zl zerolog.Logger) core.Logger {
	logger := logsvc.NewRollbarLogger(zl.With().Str("component", "api").Logger(), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config, zl zerolog.Logger) core.Logger {
	logger := logsvc.NewRollbarLogger(zl.With().Str("component", "db").Logger(), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) *storage.Repositories {
	repos, err := storage.Open(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return repos
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf)
}

func newFileStore(conf *core.Config) (core.FileStore, error) {
	return filestore.New(context.Background(), conf.Storage)
}

func newPublisher(conf *core.Config, zl zerolog.Logger) (events.Publisher, error) {
	return events.New(conf.Events, zl.With().Str("component", "events").Logger())
}

func newUserService(repos *storage.Repositories, mailSvc core.EmailService) *user.Service {
	return user.NewService(repos.DB, repos.Users, mailSvc)
}

func newCourseService(
	repos *storage.Repositories,
	users *user.Service,
	mailSvc core.EmailService,
	publisher events.Publisher,
) *course.Service {
	return course.NewService(repos.DB, repos.Courses, users, mailSvc, publisher)
}

func newTaskService(
	repos *storage.Repositories,
	courses *course.Service,
	users *user.Service,
	files core.FileStore,
	mailSvc core.EmailService,
	publisher events.Publisher,
) *task.Service {
	return task.NewService(repos.DB, repos.Tasks, courses, users, files, mailSvc, publisher)
}

func newAnnouncementService(
	repos *storage.Repositories,
	courses *course.Service,
	users *user.Service,
	mailSvc core.EmailService,
) *announcement.Service {
	return announcement.NewService(repos.Announcements, courses, users, mailSvc)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)
	announcement.RegisterValidators(validate, translator)
	return validate
}

func newShutdownChannel() chan error {
	return make(chan error, 1)
}

func newServer(p ServerParam) echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Conf:            p.Conf,
		Logger:          p.Logger,
		Validate:        p.Validate,
		Translator:      p.Translator,
		Shutdown:        p.Shutdown,
		UserSvc:         p.UserSvc,
		CourseSvc:       p.CourseSvc,
		TaskSvc:         p.TaskSvc,
		AnnouncementSvc: p.AnnouncementSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newZerolog))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(newFileStore))
	must(c.Provide(newPublisher))
	must(c.Provide(newUserService))
	must(c.Provide(newCourseService))
	must(c.Provide(newTaskService))
	must(c.Provide(newAnnouncementService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newShutdownChannel))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
