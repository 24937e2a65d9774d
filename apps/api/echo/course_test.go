package echoapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/course"
	"github.com/trezcool/edusys/core/task"
	"github.com/trezcool/edusys/services/email"
)

func Test_courseApi_subjects(t *testing.T) {
	env, app := newTestServer(t)
	teacher := env.Teacher(t, "teacher")
	student := env.Student(t, "hero")
	teacherToken := getToken(t, teacher)

	maths := course.NewSubject{Name: "Maths", Grade: 7, Category: "Science"}

	tests := []httpTest{
		{
			name: "Teacher required", method: http.MethodPost, body: marshallObj(t, maths), token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "required fields", method: http.MethodPost, body: []byte(`{}`), token: teacherToken, wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{
				"name":     "this field is required",
				"grade":    "this field is required",
				"category": "this field is required",
			}),
		},
		{name: "created", method: http.MethodPost, body: marshallObj(t, maths), token: teacherToken, wantCode: http.StatusCreated},
		{
			name: "duplicate", method: http.MethodPost, body: marshallObj(t, maths), token: teacherToken, wantCode: http.StatusConflict,
			wantData: marshallObj(t, httpErr{Error: course.ErrSubjectExists.Error()}),
		},
	}
	for i := range tests {
		tests[i].path = "/v1/subjects"
	}
	runHTTPTests(t, app, tests)

	req, rec := newAuthRequest(http.MethodGet, "/v1/subjects", teacherToken)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var subjects []course.Subject
	decode(t, rec, &subjects)
	require.Len(t, subjects, 1)
	assert.Equal(t, "Maths", subjects[0].Name)
}

func Test_courseApi_courses(t *testing.T) {
	env, app := newTestServer(t)
	teacher := env.Teacher(t, "teacher")
	other := env.Teacher(t, "other")
	student := env.Student(t, "hero")
	teacherToken := getToken(t, teacher)
	ctx := context.Background()

	subj, err := env.CourseSvc.CreateSubject(ctx, teacher, course.NewSubject{Name: "Physics", Grade: 8, Category: "Science"})
	require.NoError(t, err)

	// create
	req, rec := newAuthRequest(http.MethodPost, "/v1/courses", teacherToken, marshallObj(t, course.NewCourse{SubjectID: subj.ID, Room: "Lab 1"}))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c course.Course
	decode(t, rec, &c)
	assert.Equal(t, teacher.ID, c.TeacherID)
	assert.Equal(t, course.DefaultDescription, c.Description)

	req, rec = newAuthRequest(http.MethodPost, "/v1/courses", getToken(t, student), marshallObj(t, course.NewCourse{SubjectID: subj.ID, Room: "Lab 1"}))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	tests := []httpTest{
		{name: "teacher's courses", method: http.MethodGet, path: "/v1/courses", token: teacherToken},
		{name: "other teacher has none", method: http.MethodGet, path: "/v1/courses", token: getToken(t, other), wantData: marshallList(t)},
		{
			name: "non member", method: http.MethodGet, path: "/v1/courses/" + c.ID, token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "update by non owner", method: http.MethodPut, path: "/v1/courses/" + c.ID, token: getToken(t, other),
			body: []byte(`{"room": "Lab 2"}`), wantCode: http.StatusForbidden,
		},
		{name: "update", method: http.MethodPut, path: "/v1/courses/" + c.ID, token: teacherToken, body: []byte(`{"room": "Lab 2"}`)},
		{name: "unknown course", method: http.MethodGet, path: "/v1/courses/lol", token: teacherToken, wantCode: http.StatusNotFound},
	}
	runHTTPTests(t, app, tests)

	c, err = env.CourseSvc.Get(ctx, teacher, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lab 2", c.Room)

	// detail lists the tasks; a course holding tasks cannot be deleted
	_, _, err = env.TaskSvc.Create(ctx, teacher, c.ID, task.NewTask{
		Title: "Homework", Description: "Do it", Deadline: time.Now().Add(24 * time.Hour),
	}, nil)
	require.NoError(t, err)

	req, rec = newAuthRequest(http.MethodGet, "/v1/courses/"+c.ID+"/detail", teacherToken)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail courseDetailResponse
	decode(t, rec, &detail)
	assert.Equal(t, "Physics", detail.SubjectName)
	assert.Equal(t, teacher.Name, detail.TeacherName)
	require.Len(t, detail.Tasks, 1)
	assert.Equal(t, "Homework", detail.Tasks[0].Title)

	runHTTPTests(t, app, []httpTest{{
		name: "delete with tasks", method: http.MethodDelete, path: "/v1/courses/" + c.ID, token: teacherToken,
		wantCode: http.StatusConflict, wantData: marshallObj(t, httpErr{Error: course.ErrHasTasks.Error()}),
	}})
}

func Test_courseApi_participants(t *testing.T) {
	env, app := newTestServer(t)
	teacher := env.Teacher(t, "teacher")
	student := env.Student(t, "hero")
	c := env.Course(t, teacher, student)
	teacherToken := getToken(t, teacher)

	tests := []httpTest{
		{
			name: "participants", method: http.MethodGet, path: "/v1/courses/" + c.ID + "/participants", token: getToken(t, student),
			wantData: marshallObj(t, course.Participants{
				Teacher:  course.Participant{ID: teacher.ID, Name: teacher.Name},
				Students: []course.Participant{{ID: student.ID, Name: student.Name}},
			}),
		},
		{
			name: "student cannot remove", method: http.MethodDelete, path: "/v1/courses/" + c.ID + "/participants/" + student.ID,
			token: getToken(t, student), wantCode: http.StatusForbidden,
		},
		{
			name: "removed", method: http.MethodDelete, path: "/v1/courses/" + c.ID + "/participants/" + student.ID, token: teacherToken,
			wantData: marshallObj(t, SuccessResponse{Success: "Student removed successfully"}),
		},
		{
			name: "not enrolled", method: http.MethodDelete, path: "/v1/courses/" + c.ID + "/participants/" + student.ID, token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "Student not enrolled in this course"}),
		},
	}
	runHTTPTests(t, app, tests)
}

func Test_courseApi_invitations(t *testing.T) {
	env, app := newTestServer(t)
	teacher := env.Teacher(t, "teacher")
	c := env.Course(t, teacher)
	emailsvc.ResetSentMessages()

	req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+c.ID+"/invitations", getToken(t, teacher), []byte(`{"email": "New.Kid@Edusys.io"}`))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var inv course.Invitation
	decode(t, rec, &inv)
	assert.Equal(t, "new.kid@edusys.io", inv.Email)
	assert.False(t, inv.Accepted)

	sent := emailsvc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Invitation to join the course: "+c.Name(), sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, "/accept-invitation/"+inv.Token+"/")

	// accept
	req, rec = newRequest(http.MethodGet, "/v1/invitations/"+inv.Token+"/accept")
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, core.Conf.FrontendBaseURL+"/course/"+c.ID, rec.Header().Get("Location"))

	invitee, err := env.UserSvc.GetByEmail(context.Background(), "new.kid@edusys.io")
	require.NoError(t, err)
	assert.True(t, invitee.IsStudent())
	c, err = env.CourseSvc.Get(context.Background(), teacher, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{invitee.ID}, c.StudentIDs)
	assert.Equal(t, []string{core.EventInvitationAccepted}, env.Event.Types())

	runHTTPTests(t, app, []httpTest{
		{name: "already accepted", method: http.MethodGet, path: "/v1/invitations/" + inv.Token + "/accept", wantCode: http.StatusNotFound},
		{name: "malformed token", method: http.MethodGet, path: "/v1/invitations/lol/accept", wantCode: http.StatusNotFound},
		{
			name: "invalid email", method: http.MethodPost, path: "/v1/courses/" + c.ID + "/invitations", token: getToken(t, teacher),
			body: []byte(`{"email": "lol"}`), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"email": "email must be a valid email address"}),
		},
	})
}
