package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/task"
	"github.com/trezcool/edusys/core/user"
	inmemdb "github.com/trezcool/edusys/storage/database/inmem"
	"github.com/trezcool/edusys/testutil"
)

func setup(t *testing.T) (*commandLine, *testutil.Env, *bytes.Buffer) {
	env := testutil.NewEnv()
	out := new(bytes.Buffer)
	return &commandLine{
		conf:    core.Conf,
		out:     out,
		usrRepo:         env.UserRepo,
		usrSvc:          env.UserSvc,
		courseRepo:      inmemdb.NewCourseRepository(env.DB),
		courseSvc:       env.CourseSvc,
		taskSvc:         env.TaskSvc,
		announcementSvc: env.AnnouncementSvc,
	}, env, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest, check func(t *testing.T, tt cliTest)) {
	for _, tt := range tests {
		tt := tt
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Contains(t, err.Error(), tt.wantErrStr)
				}
			default:
				require.NoError(t, err)
				if check != nil {
					check(t, tt)
				}
			}
		})
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		if pwd == "" {
			return nil, nil
		}
		return []byte(pwd), nil
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _, out := setup(t)

	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	}, nil)
	assert.Contains(t, out.String(), "sweepoverdue")
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, out := setup(t)

	var gotCommand string
	var gotArgs []string
	migrateFunc = func(conf *core.Config, command string, args ...string) (string, error) {
		gotCommand, gotArgs = command, args
		switch command {
		case "up", "up-by-one", "down", "down-by-one", "version": // pass
		case "goto", "force":
			if len(args) == 0 {
				return "", fmt.Errorf("%s must be of form: migrate %s VERSION", command, command)
			}
			if _, err := strconv.Atoi(args[0]); err != nil {
				return "", fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return "", fmt.Errorf("%q: no such command", command)
		}
		return "version 1", nil
	}

	runCLITests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "goto: no args", args: []string{"migrate", "goto"}, wantErrStr: "goto must be of form: migrate goto VERSION"},
		{name: "goto: non-int arg", args: []string{"migrate", "goto", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "force: no args", args: []string{"migrate", "force"}, wantErrStr: "force must be of form: migrate force VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-by-one", args: []string{"migrate", "down-by-one"}},
		{name: "goto", args: []string{"migrate", "goto", "1"}, extra: []string{"1"}},
		{name: "force", args: []string{"migrate", "force", "1"}, extra: []string{"1"}},
		{name: "version", args: []string{"migrate", "version"}},
	}, func(t *testing.T, tt cliTest) {
		assert.Equal(t, tt.args[1], gotCommand)
		if args, ok := tt.extra.([]string); ok {
			assert.Equal(t, args, gotArgs)
		} else {
			assert.Empty(t, gotArgs)
		}
	})
	assert.Contains(t, out.String(), "version 1")
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env, _ := setup(t)
	ctx := context.Background()

	existing := env.Student(t, "kid")

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-username", "boss"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "boss", "-email", "boss@edusys.io"}, wantErr: errHelp},
		{
			name:       "unknown role",
			args:       []string{"adduser", "-username", "boss", "-email", "boss@edusys.io", "-role", "janitor"},
			extra:      "secret",
			wantErrStr: "role",
		},
		{
			name:  "create admin",
			args:  []string{"adduser", "-username", "Boss", "-email", "BOSS@edusys.io", "-name", "The Boss"},
			extra: "secret",
		},
		{
			name:  "promote existing user",
			args:  []string{"adduser", "-username", existing.Username, "-email", existing.Email, "-role", "teacher"},
			extra: "newsecret",
		},
	}
	for _, tt := range tests {
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)
		runCLITests(t, cli, []cliTest{tt}, nil)
	}

	boss, err := env.UserRepo.GetUser(ctx, user.GetFilter{Username: "boss"})
	require.NoError(t, err)
	assert.Equal(t, "The Boss", boss.Name)
	assert.Equal(t, "boss@edusys.io", boss.Email)
	assert.True(t, boss.IsActive)
	assert.True(t, boss.IsAdmin())
	assert.NoError(t, boss.CheckPassword("secret"))

	promoted, err := env.UserRepo.GetUser(ctx, user.GetFilter{ID: existing.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleTeacher}, promoted.Roles)
	assert.Equal(t, existing.Name, promoted.Name)
	assert.NoError(t, promoted.CheckPassword("newsecret"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env, _ := setup(t)

	usr := testutil.CreateUser(t, env.UserRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: "lol"},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: "lmao"},
	}
	for _, tt := range tests {
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)
		runCLITests(t, cli, []cliTest{tt}, func(t *testing.T, tt cliTest) {
			refreshed, err := env.UserRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.NoError(t, refreshed.CheckPassword(tt.extra.(string)))
		})
	}
}

func Test_commandLine_sweepOverdue(t *testing.T) {
	cli, env, out := setup(t)
	ctx := context.Background()

	teacher := env.Teacher(t, "teach")
	kid := env.Student(t, "kid")
	c := env.Course(t, teacher, kid)
	_, _, err := env.TaskSvc.Create(ctx, teacher, c.ID, task.NewTask{
		Title:       "Essay",
		Description: "Write it",
		Deadline:    time.Now().Add(time.Hour).UTC(),
	}, nil)
	require.NoError(t, err)

	nowFunc = func() time.Time { return time.Now().Add(2 * time.Hour) }
	defer func() { nowFunc = time.Now }()

	runCLITests(t, cli, []cliTest{{name: "sweep", args: []string{"sweepoverdue"}}}, nil)
	assert.Contains(t, out.String(), "1 assignment(s) marked overdue")

	out.Reset()
	runCLITests(t, cli, []cliTest{{name: "sweep again", args: []string{"sweepoverdue"}}}, nil)
	assert.Contains(t, out.String(), "0 assignment(s) marked overdue")
	assert.Contains(t, env.Event.Types(), core.EventAssignmentsOverdue)
}

func Test_commandLine_seed(t *testing.T) {
	cli, env, out := setup(t)
	ctx := context.Background()

	runCLITests(t, cli, []cliTest{
		{name: "seed", args: []string{"seed", "-password", "s3cret!"}},
		{name: "seed twice", args: []string{"seed"}, wantErr: errAlreadySeeded},
	}, nil)
	assert.Contains(t, out.String(), "sample data inserted")

	teacher, err := env.UserRepo.GetUser(ctx, user.GetFilter{Username: "teacher1"})
	require.NoError(t, err)
	assert.True(t, teacher.IsTeacher())
	assert.NoError(t, teacher.CheckPassword("s3cret!"))
	student1, err := env.UserRepo.GetUser(ctx, user.GetFilter{Username: "student1"})
	require.NoError(t, err)

	courses, err := env.CourseSvc.ListForUser(ctx, teacher)
	require.NoError(t, err)
	require.Len(t, courses, 2)
	var mathsID string
	for _, c := range courses {
		if c.Room == "101" {
			mathsID = c.ID
		}
	}
	require.NotEmpty(t, mathsID)

	participants, err := env.CourseSvc.Participants(ctx, teacher, mathsID)
	require.NoError(t, err)
	assert.Len(t, participants.Students, 2)

	tasks, err := env.TaskSvc.ListForCourse(ctx, teacher, mathsID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	view, err := env.TaskSvc.Detail(ctx, student1, tasks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusSubmitted, view.Assignment.Status)
	assert.Len(t, view.SubmittedFiles, 1)

	feed, err := env.AnnouncementSvc.ListForCourse(ctx, teacher, mathsID)
	require.NoError(t, err)
	assert.Len(t, feed.Announcements, 1)
	assert.Len(t, feed.Comments, 1)
	assert.Len(t, feed.Reactions, 1)
}
