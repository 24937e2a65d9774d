// Package testutil wires the services on in-memory storage for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/announcement"
	"github.com/trezcool/edusys/core/course"
	"github.com/trezcool/edusys/core/task"
	"github.com/trezcool/edusys/core/user"
	"github.com/trezcool/edusys/services/email"
	"github.com/trezcool/edusys/services/events"
	"github.com/trezcool/edusys/services/filestore"
	"github.com/trezcool/edusys/storage/database/inmem"
)

// Password passes the password policy.
const Password = "Xq7#mZp2!vLk"

// Env holds services backed by a fresh in-memory database.
type Env struct {
	DB    *inmemdb.DB
	Files core.FileStore
	Event *events.Recorder

	UserRepo user.Repository

	UserSvc         *user.Service
	CourseSvc       *course.Service
	TaskSvc         *task.Service
	AnnouncementSvc *announcement.Service
}

// NewEnv returns a new Env and empties the recorded emails.
func NewEnv() *Env {
	core.Conf.TestMode = true
	emailsvc.ResetSentMessages()

	db := inmemdb.NewDB()
	env := &Env{
		DB:       db,
		Files:    filestore.NewMemoryStore(),
		Event:    new(events.Recorder),
		UserRepo: inmemdb.NewUserRepository(db),
	}
	mailSvc := emailsvc.NewConsoleServiceMock()

	env.UserSvc = user.NewService(nil, env.UserRepo, mailSvc)
	env.CourseSvc = course.NewService(nil, inmemdb.NewCourseRepository(db), env.UserSvc, mailSvc, env.Event)
	env.TaskSvc = task.NewService(nil, inmemdb.NewTaskRepository(db), env.CourseSvc, env.UserSvc, env.Files, mailSvc, env.Event)
	env.AnnouncementSvc = announcement.NewService(inmemdb.NewAnnouncementRepository(db), env.CourseSvc, env.UserSvc, mailSvc)
	return env
}

// NewValidator returns a validator with every custom tag registered.
func NewValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)
	announcement.RegisterValidators(validate, translator)
	return validate
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// Teacher creates an active teacher named after uname.
func (env *Env) Teacher(t *testing.T, uname string) user.User {
	return CreateUser(t, env.UserRepo, "Teacher "+uname, uname, uname+"@edusys.io", Password, []string{user.RoleTeacher}, true)
}

// Student creates an active student named after uname.
func (env *Env) Student(t *testing.T, uname string) user.User {
	return CreateUser(t, env.UserRepo, "Student "+uname, uname, uname+"@edusys.io", Password, []string{user.RoleStudent}, true)
}

// Admin creates an active admin named after uname.
func (env *Env) Admin(t *testing.T, uname string) user.User {
	return CreateUser(t, env.UserRepo, "Admin "+uname, uname, uname+"@edusys.io", Password, []string{user.RoleAdmin}, true)
}

// Course creates a course taught by teacher with students enrolled.
func (env *Env) Course(t *testing.T, teacher user.User, students ...user.User) course.Course {
	ctx := context.Background()
	subj, err := env.CourseSvc.CreateSubject(ctx, teacher, course.NewSubject{
		Name:     "Maths " + uuid.NewString()[:8],
		Grade:    7,
		Category: "Science",
	})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	c, err := env.CourseSvc.Create(ctx, teacher, course.NewCourse{SubjectID: subj.ID, Room: "B12"})
	if err != nil {
		t.Fatalf("Create() course failed: %v", err)
	}
	repo := inmemdb.NewCourseRepository(env.DB)
	for _, s := range students {
		if err = repo.AddStudent(ctx, c.ID, s.ID); err != nil {
			t.Fatalf("AddStudent() failed: %v", err)
		}
	}
	if c, err = repo.GetCourse(ctx, c.ID); err != nil {
		t.Fatalf("GetCourse() failed: %v", err)
	}
	return c
}
