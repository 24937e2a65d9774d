package task_test

import (
	"context"
	"encoding/base64"
	"io"
	"io/ioutil"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/course"
	"github.com/trezcool/edusys/core/task"
	"github.com/trezcool/edusys/core/user"
	"github.com/trezcool/edusys/services/email"
	inmemdb "github.com/trezcool/edusys/storage/database/inmem"
	"github.com/trezcool/edusys/testutil"
)

type fixture struct {
	env     *testutil.Env
	teacher user.User
	amy     user.User
	bob     user.User
	course  course.Course
}

func setup(t *testing.T) fixture {
	env := testutil.NewEnv()
	f := fixture{env: env, teacher: env.Teacher(t, "teach")}
	f.amy = env.Student(t, "amy")
	f.bob = env.Student(t, "bob")
	f.course = env.Course(t, f.teacher, f.amy, f.bob)
	return f
}

func upload(name, content string) core.Upload {
	return core.Upload{Name: name, ContentType: "text/plain", Size: int64(len(content)), Content: strings.NewReader(content)}
}

func (f fixture) createTask(t *testing.T, title string, deadline time.Time, uploads ...core.Upload) task.Task {
	tsk, outcome, err := f.env.TaskSvc.Create(context.Background(), f.teacher, f.course.ID, task.NewTask{
		Title:       title,
		Description: "Do it well",
		Deadline:    deadline,
	}, uploads)
	require.NoError(t, err)
	require.True(t, outcome.OK(), outcome.Warning())
	return tsk
}

func (f fixture) assignment(t *testing.T, taskID, studentID string) task.Assignment {
	view, err := f.env.TaskSvc.Submissions(context.Background(), f.teacher, taskID)
	require.NoError(t, err)
	for _, a := range view.Assignments {
		if a.StudentID == studentID {
			return a
		}
	}
	t.Fatalf("no assignment of %s for task %s", studentID, taskID)
	return task.Assignment{}
}

func exists(t *testing.T, store core.FileStore, path string) bool {
	ok, err := store.Exists(context.Background(), path)
	require.NoError(t, err)
	return ok
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	deadline := time.Now().Add(24 * time.Hour).UTC()

	t.Run("students and strangers cannot create", func(t *testing.T) {
		_, _, err := f.env.TaskSvc.Create(ctx, f.amy, f.course.ID, task.NewTask{Title: "x", Description: "x", Deadline: deadline}, nil)
		assert.Equal(t, core.ErrPermissionDenied, err)
		_, _, err = f.env.TaskSvc.Create(ctx, f.env.Teacher(t, "other"), f.course.ID, task.NewTask{Title: "x", Description: "x", Deadline: deadline}, nil)
		assert.Equal(t, core.ErrPermissionDenied, err)
	})

	t.Run("fan out", func(t *testing.T) {
		emailsvc.ResetSentMessages()
		tsk := f.createTask(t, " Essay ", deadline, upload("guide.txt", "read this"))
		assert.Equal(t, "Essay", tsk.Title)
		assert.Equal(t, f.teacher.ID, tsk.AssignedBy)

		view, err := f.env.TaskSvc.Submissions(ctx, f.teacher, tsk.ID)
		require.NoError(t, err)
		require.Len(t, view.Assignments, 2)
		for _, a := range view.Assignments {
			assert.Equal(t, task.StatusPending, a.Status)
			assert.Equal(t, "Essay", a.TaskTitle)
		}
		require.Len(t, view.TaskFiles, 1)
		guide := view.TaskFiles[0]
		assert.Equal(t, "guide.txt", guide.FileName)
		assert.Equal(t, "tasks/"+tsk.ID+"/"+guide.ID+"-guide.txt", guide.Path)
		assert.True(t, exists(t, f.env.Files, guide.Path))

		sent := emailsvc.Sent()
		require.Len(t, sent, 2)
		assert.Contains(t, sent[0].Subject, "New Assignment: Essay in "+f.course.Name())
		assert.Equal(t, []string{core.EventTaskCreated}, f.env.Event.Types())
	})

	t.Run("students enrolled later are not assigned", func(t *testing.T) {
		tsk := f.createTask(t, "Poem", deadline)
		late := f.env.Student(t, "late")
		inv, _, err := f.env.CourseSvc.Invite(ctx, f.teacher, f.course.ID, course.NewInvitation{Email: late.Email})
		require.NoError(t, err)
		_, _, err = f.env.CourseSvc.AcceptInvitation(ctx, inv.Token)
		require.NoError(t, err)

		view, err := f.env.TaskSvc.Submissions(ctx, f.teacher, tsk.ID)
		require.NoError(t, err)
		assert.Len(t, view.Assignments, 2)
		_, err = f.env.TaskSvc.Detail(ctx, late, tsk.ID)
		assert.Equal(t, task.ErrAssignmentNotFound, err)
	})

	t.Run("notification failure keeps the task", func(t *testing.T) {
		f.env.Event.Err = assert.AnError
		defer func() { f.env.Event.Err = nil }()

		tsk, outcome, err := f.env.TaskSvc.Create(ctx, f.teacher, f.course.ID, task.NewTask{Title: "Quiz", Description: "x", Deadline: deadline}, nil)
		require.NoError(t, err)
		assert.False(t, outcome.OK())
		assert.Contains(t, outcome.Warning(), "saved, but")
		_, _, err = f.env.TaskSvc.Get(ctx, f.teacher, tsk.ID)
		assert.NoError(t, err)
	})
}

func TestService_submitAndGrade(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tsk := f.createTask(t, "Essay", time.Now().Add(time.Hour))

	t.Run("grading needs a submission", func(t *testing.T) {
		_, _, err := f.env.TaskSvc.Grade(ctx, f.teacher, tsk.ID, f.amy.ID, task.GradeInput{Grade: 8, Feedback: "ok"})
		assert.Equal(t, task.ErrNoSubmission, err)
		_, err = f.env.TaskSvc.GradingView(ctx, f.teacher, tsk.ID, f.amy.ID)
		assert.Equal(t, task.ErrSubmissionNotFound, err)
	})

	t.Run("teachers cannot submit", func(t *testing.T) {
		_, _, err := f.env.TaskSvc.Submit(ctx, f.teacher, tsk.ID, "", nil)
		assert.Equal(t, core.ErrPermissionDenied, err)
	})

	t.Run("submit once", func(t *testing.T) {
		sub, outcome, err := f.env.TaskSvc.Submit(ctx, f.amy, tsk.ID, " my work ", []core.Upload{upload("work.txt", "done")})
		require.NoError(t, err)
		assert.True(t, outcome.OK())
		assert.Equal(t, "my work", sub.Comments)
		require.Len(t, sub.Files, 1)
		assert.Equal(t, "submissions/amy/"+sub.ID+"/"+sub.Files[0].ID+"-work.txt", sub.Files[0].Path)
		assert.True(t, exists(t, f.env.Files, sub.Files[0].Path))

		_, _, err = f.env.TaskSvc.Submit(ctx, f.amy, tsk.ID, "again", nil)
		assert.Equal(t, task.ErrAlreadySubmitted, err)

		view, err := f.env.TaskSvc.Detail(ctx, f.amy, tsk.ID)
		require.NoError(t, err)
		assert.Equal(t, task.StatusSubmitted, view.Assignment.Status)
		assert.False(t, view.Assignment.IsLate)
		require.NotNil(t, view.Submission)
		assert.Len(t, view.SubmittedFiles, 1)
	})

	t.Run("grade validation", func(t *testing.T) {
		for _, in := range []task.GradeInput{{Grade: 0, Feedback: "ok"}, {Grade: 8, Feedback: "  "}, {}} {
			_, _, err := f.env.TaskSvc.Grade(ctx, f.teacher, tsk.ID, f.amy.ID, in)
			assert.Equal(t, task.ErrGradeRequired, err)
		}
		a := f.assignment(t, tsk.ID, f.amy.ID)
		assert.Equal(t, task.StatusSubmitted, a.Status)
		assert.Zero(t, a.Grade)
		assert.Empty(t, a.TeacherFeedback)
		_, _, err := f.env.TaskSvc.Grade(ctx, f.amy, tsk.ID, f.amy.ID, task.GradeInput{Grade: 8, Feedback: "ok"})
		assert.Equal(t, core.ErrPermissionDenied, err)
	})

	t.Run("grade and regrade", func(t *testing.T) {
		emailsvc.ResetSentMessages()
		a, outcome, err := f.env.TaskSvc.Grade(ctx, f.teacher, tsk.ID, f.amy.ID, task.GradeInput{Grade: 7, Feedback: "good"})
		require.NoError(t, err)
		assert.True(t, outcome.OK())
		assert.Equal(t, task.StatusGraded, a.Status)

		a, _, err = f.env.TaskSvc.Grade(ctx, f.teacher, tsk.ID, f.amy.ID, task.GradeInput{Grade: 9, Feedback: "better"})
		require.NoError(t, err)
		assert.Equal(t, 9, a.Grade)

		sent := emailsvc.Sent()
		require.Len(t, sent, 2)
		assert.Equal(t, f.amy.Email, sent[1].To[0].Address)
		require.Len(t, sent[1].Attachments, 1, "the submitted file goes along with the grade")
		assert.Equal(t, "work.txt", sent[1].Attachments[0].Filename)
		assert.Equal(t, "text/plain", sent[1].Attachments[0].ContentType)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("done")), sent[1].Attachments[0].Content.String())

		a = f.assignment(t, tsk.ID, f.amy.ID)
		_, _, err = f.env.TaskSvc.Grade(ctx, f.teacher, tsk.ID, f.amy.ID, task.GradeInput{Grade: 3})
		assert.Equal(t, task.ErrGradeRequired, err)
		unchanged := f.assignment(t, tsk.ID, f.amy.ID)
		assert.Equal(t, task.StatusGraded, unchanged.Status)
		assert.Equal(t, 9, unchanged.Grade)
		assert.Equal(t, a.TeacherFeedback, unchanged.TeacherFeedback)

		gv, err := f.env.TaskSvc.GradingView(ctx, f.teacher, tsk.ID, f.amy.ID)
		require.NoError(t, err)
		assert.Equal(t, "amy", gv.StudentName)
		assert.Equal(t, 9, gv.Grade)
		assert.Equal(t, "better", gv.TeacherFeedback)
		assert.Equal(t, "my work", gv.Comments)

		_, _, err = f.env.TaskSvc.Submit(ctx, f.amy, tsk.ID, "late change", nil)
		assert.Equal(t, task.ErrAlreadySubmitted, err)
	})

	assert.Equal(t, []string{
		core.EventTaskCreated,
		core.EventTaskSubmitted,
		core.EventAssignmentGraded,
		core.EventAssignmentGraded,
	}, f.env.Event.Types())
}

func TestService_lateSubmission(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tsk := f.createTask(t, "Essay", time.Now().Add(-time.Hour))

	_, _, err := f.env.TaskSvc.Submit(ctx, f.bob, tsk.ID, "", nil)
	require.NoError(t, err)
	view, err := f.env.TaskSvc.Detail(ctx, f.bob, tsk.ID)
	require.NoError(t, err)
	assert.True(t, view.Assignment.IsLate)
}

func TestService_ExtendDueDate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tsk := f.createTask(t, "Essay", time.Now().Add(time.Hour))
	a := f.assignment(t, tsk.ID, f.amy.ID)

	_, _, err := f.env.TaskSvc.ExtendDueDate(ctx, f.teacher, tsk.ID, a.ID, " ")
	assert.Equal(t, task.ErrLateDueDateRequired, err)
	for _, raw := range []string{"next week", "2030-01-01", "2030-13-01T10:00:00Z"} {
		_, _, err = f.env.TaskSvc.ExtendDueDate(ctx, f.teacher, tsk.ID, a.ID, raw)
		assert.Equal(t, task.ErrInvalidDate, err, raw)
	}
	unchanged := f.assignment(t, tsk.ID, f.amy.ID)
	assert.Nil(t, unchanged.LateDueDate)
	assert.False(t, unchanged.IsLate)
	assert.Equal(t, task.StatusPending, unchanged.Status)
	_, _, err = f.env.TaskSvc.ExtendDueDate(ctx, f.amy, tsk.ID, a.ID, "2030-01-01T00:00:00Z")
	assert.Equal(t, core.ErrPermissionDenied, err)

	extended, outcome, err := f.env.TaskSvc.ExtendDueDate(ctx, f.teacher, tsk.ID, a.ID, "2030-01-01T10:00:00+02:00")
	require.NoError(t, err)
	assert.True(t, outcome.OK())
	require.NotNil(t, extended.LateDueDate)
	assert.True(t, time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC).Equal(*extended.LateDueDate))
	assert.True(t, extended.IsLate)

	// the extension keeps the assignment pending past the task deadline
	n, _, err := f.env.TaskSvc.SweepOverdue(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, task.StatusPending, f.assignment(t, tsk.ID, f.amy.ID).Status)
	assert.Equal(t, task.StatusOverdue, f.assignment(t, tsk.ID, f.bob.ID).Status)
}

func TestService_SweepOverdue(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	soon := f.createTask(t, "Soon", time.Now().Add(time.Hour))
	f.createTask(t, "Later", time.Now().Add(48*time.Hour))

	_, _, err := f.env.TaskSvc.Submit(ctx, f.amy, soon.ID, "", nil)
	require.NoError(t, err)

	n, outcome, err := f.env.TaskSvc.SweepOverdue(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, outcome.OK())

	n, _, err = f.env.TaskSvc.SweepOverdue(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only bob's pending assignment of the first task")
	assert.Equal(t, task.StatusSubmitted, f.assignment(t, soon.ID, f.amy.ID).Status)
	assert.Equal(t, task.StatusOverdue, f.assignment(t, soon.ID, f.bob.ID).Status)

	n, _, err = f.env.TaskSvc.SweepOverdue(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	_, _, err = f.env.TaskSvc.Submit(ctx, f.bob, soon.ID, "sorry", nil)
	require.NoError(t, err, "overdue work can still be handed in")
	assert.Equal(t, task.StatusSubmitted, f.assignment(t, soon.ID, f.bob.ID).Status)
}

func TestService_Unassign(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tsk := f.createTask(t, "Essay", time.Now().Add(time.Hour))

	sub, _, err := f.env.TaskSvc.Submit(ctx, f.amy, tsk.ID, "", []core.Upload{upload("work.txt", "done")})
	require.NoError(t, err)
	a := f.assignment(t, tsk.ID, f.amy.ID)

	_, err = f.env.TaskSvc.Unassign(ctx, f.amy, tsk.ID, a.ID)
	assert.Equal(t, core.ErrPermissionDenied, err)

	outcome, err := f.env.TaskSvc.Unassign(ctx, f.teacher, tsk.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, outcome.OK())
	assert.False(t, exists(t, f.env.Files, sub.Files[0].Path))

	view, err := f.env.TaskSvc.Submissions(ctx, f.teacher, tsk.ID)
	require.NoError(t, err)
	require.Len(t, view.Assignments, 1)
	assert.Equal(t, f.bob.ID, view.Assignments[0].StudentID)

	_, err = f.env.TaskSvc.Unassign(ctx, f.teacher, tsk.ID, a.ID)
	assert.Equal(t, task.ErrAssignmentNotFound, err)
}

func TestService_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tsk := f.createTask(t, "Essay", time.Now().Add(time.Hour), upload("guide.txt", "read"))
	sub, _, err := f.env.TaskSvc.Submit(ctx, f.amy, tsk.ID, "", []core.Upload{upload("work.txt", "done")})
	require.NoError(t, err)
	_, taskFiles, err := f.env.TaskSvc.Get(ctx, f.teacher, tsk.ID)
	require.NoError(t, err)
	require.Len(t, taskFiles, 1)

	_, err = f.env.TaskSvc.Delete(ctx, f.amy, tsk.ID)
	assert.Equal(t, core.ErrPermissionDenied, err)

	outcome, err := f.env.TaskSvc.Delete(ctx, f.teacher, tsk.ID)
	require.NoError(t, err)
	assert.True(t, outcome.OK())
	assert.False(t, exists(t, f.env.Files, taskFiles[0].Path))
	assert.False(t, exists(t, f.env.Files, sub.Files[0].Path))

	_, _, err = f.env.TaskSvc.Get(ctx, f.teacher, tsk.ID)
	assert.Equal(t, task.ErrNotFound, err)
	tasks, err := f.env.TaskSvc.ListForCourse(ctx, f.teacher, f.course.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	require.NoError(t, f.env.CourseSvc.Delete(ctx, f.teacher, f.course.ID), "nothing holds the course anymore")
}

func TestService_Update(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tsk := f.createTask(t, "Essay", time.Now().Add(time.Hour))
	deadline := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := f.env.TaskSvc.Update(ctx, f.amy, tsk.ID, task.UpdateTask{Title: "Hacked"})
	assert.Equal(t, core.ErrPermissionDenied, err)

	updated, err := f.env.TaskSvc.Update(ctx, f.teacher, tsk.ID, task.UpdateTask{Title: " Long essay ", Deadline: deadline})
	require.NoError(t, err)
	assert.Equal(t, "Long essay", updated.Title)
	assert.Equal(t, "Do it well", updated.Description)
	assert.True(t, deadline.Equal(updated.Deadline))
}

func TestService_reports(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	essay := f.createTask(t, "Essay", time.Now().Add(time.Hour))
	poem := f.createTask(t, "Poem", time.Now().Add(2*time.Hour))

	grade := func(tsk task.Task, student user.User, g int) {
		_, _, err := f.env.TaskSvc.Submit(ctx, student, tsk.ID, "", nil)
		require.NoError(t, err)
		_, _, err = f.env.TaskSvc.Grade(ctx, f.teacher, tsk.ID, student.ID, task.GradeInput{Grade: g, Feedback: "ok"})
		require.NoError(t, err)
	}
	grade(essay, f.amy, 8)
	grade(poem, f.amy, 9)
	grade(essay, f.bob, 6)
	// submitted but not graded yet
	_, _, err := f.env.TaskSvc.Submit(ctx, f.bob, poem.ID, "", nil)
	require.NoError(t, err)

	t.Run("student grades", func(t *testing.T) {
		report, err := f.env.TaskSvc.StudentGrades(ctx, f.amy)
		require.NoError(t, err)
		require.Len(t, report.TaskGrades, 1)
		assert.Equal(t, f.course.Name(), report.TaskGrades[0].CourseSubject)
		assert.Equal(t, f.teacher.Name, report.TaskGrades[0].TeacherName)
		assert.Len(t, report.TaskGrades[0].Tasks, 2)
		require.NotNil(t, report.AverageTaskGrade)
		assert.Equal(t, 8.5, *report.AverageTaskGrade)

		_, err = f.env.TaskSvc.StudentGrades(ctx, f.teacher)
		assert.Equal(t, core.ErrPermissionDenied, err)
	})

	t.Run("no grades yet", func(t *testing.T) {
		report, err := f.env.TaskSvc.StudentGrades(ctx, f.env.Student(t, "newbie"))
		require.NoError(t, err)
		assert.Empty(t, report.TaskGrades)
		assert.Nil(t, report.AverageTaskGrade)
	})

	t.Run("course overview", func(t *testing.T) {
		overview, err := f.env.TaskSvc.CourseOverview(ctx, f.teacher, f.course.ID)
		require.NoError(t, err)
		require.Len(t, overview.StudentGrades, 2)

		amy := overview.StudentGrades["amy"]
		require.NotNil(t, amy)
		assert.Equal(t, f.amy.Name, amy.FullName)
		assert.Len(t, amy.Tasks, 2)
		assert.Equal(t, 8.5, *amy.AverageGrade)

		bob := overview.StudentGrades["bob"]
		require.NotNil(t, bob)
		assert.Len(t, bob.Tasks, 1)
		assert.Equal(t, 6.0, *bob.AverageGrade)

		_, err = f.env.TaskSvc.CourseOverview(ctx, f.env.Teacher(t, "other"), f.course.ID)
		assert.Equal(t, core.ErrPermissionDenied, err)
	})
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	defer rc.Close()
	content, err := ioutil.ReadAll(rc)
	require.NoError(t, err)
	return string(content)
}

func TestService_filesOfSameName(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	deadline := time.Now().Add(time.Hour)

	first := f.createTask(t, "Homework", deadline, upload("sheet.txt", "FIRST"))
	second := f.createTask(t, "Homework", deadline, upload("sheet.txt", "SECOND"))
	twins := f.createTask(t, "Twins", deadline, upload("a.txt", "one"), upload("a.txt", "two"))

	_, firstFiles, err := f.env.TaskSvc.Get(ctx, f.teacher, first.ID)
	require.NoError(t, err)
	_, secondFiles, err := f.env.TaskSvc.Get(ctx, f.teacher, second.ID)
	require.NoError(t, err)
	require.Len(t, firstFiles, 1)
	require.Len(t, secondFiles, 1)
	assert.NotEqual(t, firstFiles[0].Path, secondFiles[0].Path)

	_, rc, err := f.env.TaskSvc.TaskFile(ctx, f.amy, first.ID, firstFiles[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "FIRST", readAll(t, rc))

	_, twinFiles, err := f.env.TaskSvc.Get(ctx, f.teacher, twins.ID)
	require.NoError(t, err)
	require.Len(t, twinFiles, 2)
	assert.NotEqual(t, twinFiles[0].Path, twinFiles[1].Path)

	// submissions to tasks of the same title
	sub1, _, err := f.env.TaskSvc.Submit(ctx, f.amy, first.ID, "", []core.Upload{upload("work.txt", "mine 1")})
	require.NoError(t, err)
	sub2, _, err := f.env.TaskSvc.Submit(ctx, f.amy, second.ID, "", []core.Upload{upload("work.txt", "mine 2")})
	require.NoError(t, err)
	assert.NotEqual(t, sub1.Files[0].Path, sub2.Files[0].Path)

	_, err = f.env.TaskSvc.Delete(ctx, f.teacher, first.ID)
	require.NoError(t, err)
	assert.False(t, exists(t, f.env.Files, firstFiles[0].Path))
	assert.False(t, exists(t, f.env.Files, sub1.Files[0].Path))

	_, rc, err = f.env.TaskSvc.TaskFile(ctx, f.amy, second.ID, secondFiles[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "SECOND", readAll(t, rc))
	assert.True(t, exists(t, f.env.Files, sub2.Files[0].Path))
}

func TestService_TaskFile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tsk := f.createTask(t, "Essay", time.Now().Add(time.Hour), upload("guide.txt", "read this"))
	_, files, err := f.env.TaskSvc.Get(ctx, f.teacher, tsk.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)

	tests := []struct {
		name    string
		caller  user.User
		fileID  string
		wantErr error
	}{
		{name: "student of the course", caller: f.amy, fileID: files[0].ID},
		{name: "teacher", caller: f.teacher, fileID: files[0].ID},
		{name: "stranger", caller: f.env.Student(t, "stranger"), fileID: files[0].ID, wantErr: core.ErrPermissionDenied},
		{name: "unknown file", caller: f.amy, fileID: "nope", wantErr: task.ErrFileNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fl, rc, err := f.env.TaskSvc.TaskFile(ctx, tt.caller, tsk.ID, tt.fileID)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "guide.txt", fl.FileName)
			assert.Equal(t, "read this", readAll(t, rc))
		})
	}

	t.Run("blob gone", func(t *testing.T) {
		require.NoError(t, f.env.Files.Delete(ctx, files[0].Path))
		_, _, err := f.env.TaskSvc.TaskFile(ctx, f.amy, tsk.ID, files[0].ID)
		assert.Equal(t, task.ErrFileNotFound, err)
	})
}

func TestService_SubmissionFile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tsk := f.createTask(t, "Essay", time.Now().Add(time.Hour))
	sub, _, err := f.env.TaskSvc.Submit(ctx, f.amy, tsk.ID, "", []core.Upload{upload("work.txt", "done")})
	require.NoError(t, err)
	require.Len(t, sub.Files, 1)
	amyAssignment := f.assignment(t, tsk.ID, f.amy.ID)
	bobAssignment := f.assignment(t, tsk.ID, f.bob.ID)

	tests := []struct {
		name         string
		caller       user.User
		assignmentID string
		fileID       string
		wantErr      error
	}{
		{name: "owner", caller: f.amy, assignmentID: amyAssignment.ID, fileID: sub.Files[0].ID},
		{name: "teacher", caller: f.teacher, assignmentID: amyAssignment.ID, fileID: sub.Files[0].ID},
		{name: "classmate", caller: f.bob, assignmentID: amyAssignment.ID, fileID: sub.Files[0].ID, wantErr: core.ErrPermissionDenied},
		{name: "other teacher", caller: f.env.Teacher(t, "other"), assignmentID: amyAssignment.ID, fileID: sub.Files[0].ID, wantErr: core.ErrPermissionDenied},
		{name: "file of another assignment", caller: f.bob, assignmentID: bobAssignment.ID, fileID: sub.Files[0].ID, wantErr: task.ErrFileNotFound},
		{name: "unknown assignment", caller: f.amy, assignmentID: "nope", fileID: sub.Files[0].ID, wantErr: task.ErrAssignmentNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fl, rc, err := f.env.TaskSvc.SubmissionFile(ctx, tt.caller, tsk.ID, tt.assignmentID, tt.fileID)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "work.txt", fl.FileName)
			assert.Equal(t, "done", readAll(t, rc))
		})
	}
}

func TestService_concurrentSubmits(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tsk := f.createTask(t, "Essay", time.Now().Add(time.Hour))

	const n = 20
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = f.env.TaskSvc.Submit(ctx, f.amy, tsk.ID, "", []core.Upload{upload("work.txt", "done")})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, task.ErrAlreadySubmitted, err)
	}
	assert.Equal(t, 1, succeeded)

	a := f.assignment(t, tsk.ID, f.amy.ID)
	subs, err := inmemdb.NewTaskRepository(f.env.DB).QuerySubmissions(ctx, []string{a.ID})
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestTaskRepository_CreateSubmission_once(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tsk := f.createTask(t, "Essay", time.Now().Add(time.Hour))
	a := f.assignment(t, tsk.ID, f.amy.ID)
	repo := inmemdb.NewTaskRepository(f.env.DB)

	_, err := repo.CreateSubmission(ctx, task.Submission{ID: "s1", AssignmentID: a.ID, SubmissionDate: time.Now()})
	require.NoError(t, err)
	_, err = repo.CreateSubmission(ctx, task.Submission{ID: "s2", AssignmentID: a.ID, SubmissionDate: time.Now()})
	assert.Equal(t, task.ErrAlreadySubmitted, err)
}

type failingUsers struct{}

func (failingUsers) GetByID(context.Context, string) (user.User, error) {
	return user.User{}, assert.AnError
}

func TestService_Grade_userLookupFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := task.NewService(nil, inmemdb.NewTaskRepository(f.env.DB), f.env.CourseSvc, failingUsers{}, f.env.Files, emailsvc.NewConsoleServiceMock(), f.env.Event)

	tsk := f.createTask(t, "Essay", time.Now().Add(time.Hour))
	_, _, err := f.env.TaskSvc.Submit(ctx, f.amy, tsk.ID, "", nil)
	require.NoError(t, err)

	a, outcome, err := svc.Grade(ctx, f.teacher, tsk.ID, f.amy.ID, task.GradeInput{Grade: 8, Feedback: "ok"})
	require.NoError(t, err)
	assert.Equal(t, task.StatusGraded, a.Status)
	var depErr *core.DependencyError
	require.ErrorAs(t, outcome.NotifyErr, &depErr)
	assert.Equal(t, "users", depErr.Dependency)
}

func TestService_Grade_missingBlob(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tsk := f.createTask(t, "Essay", time.Now().Add(time.Hour))
	sub, _, err := f.env.TaskSvc.Submit(ctx, f.amy, tsk.ID, "", []core.Upload{upload("work.txt", "done")})
	require.NoError(t, err)
	require.NoError(t, f.env.Files.Delete(ctx, sub.Files[0].Path))

	emailsvc.ResetSentMessages()
	_, outcome, err := f.env.TaskSvc.Grade(ctx, f.teacher, tsk.ID, f.amy.ID, task.GradeInput{Grade: 8, Feedback: "ok"})
	require.NoError(t, err)
	require.Error(t, outcome.NotifyErr)
	assert.Contains(t, outcome.NotifyErr.Error(), "work.txt")

	sent := emailsvc.Sent()
	require.Len(t, sent, 1, "the grade is still sent")
	assert.Empty(t, sent[0].Attachments)
}
