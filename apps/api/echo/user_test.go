package echoapi

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/user"
	"github.com/trezcool/edusys/services/email"
	"github.com/trezcool/edusys/testutil"
)

func Test_userApi_register(t *testing.T) {
	env, app := newTestServer(t)
	testutil.CreateUser(t, env.UserRepo, "Taken", "taken", "taken@edusys.io", "", []string{user.RoleStudent}, true)

	newUser := func(uname, role string) []byte {
		return marshallObj(t, RegisterRequest{
			NewUser: user.NewUser{
				Name:            "Test User",
				Username:        uname,
				Email:           uname + "@edusys.io",
				Password:        testutil.Password,
				PasswordConfirm: testutil.Password,
			},
			Role: role,
		})
	}

	tests := []httpTest{
		{
			name: "role required", body: newUser("testuser", ""), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"role": "role must be one of student or teacher"}),
		},
		{
			name: "admin role refused", body: newUser("testuser", "admin"), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"role": "role must be one of student or teacher"}),
		},
		{
			name: "username taken", body: newUser("taken", "student"), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"username": user.ErrUsernameExists.Error()}),
		},
		{name: "student registered", body: newUser("testuser", "student"), wantCode: http.StatusCreated},
		{name: "teacher registered", body: newUser("teacher01", "teacher:"), wantCode: http.StatusCreated},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/register"
	}
	runHTTPTests(t, app, tests)

	ctx := context.Background()
	student, err := env.UserSvc.GetByUsername(ctx, "testuser")
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleStudent}, student.Roles)
	assert.True(t, student.IsActive)

	teacher, err := env.UserSvc.GetByUsername(ctx, "teacher01")
	require.NoError(t, err)
	assert.True(t, teacher.IsTeacher())
}

func Test_userApi_login(t *testing.T) {
	env, app := newTestServer(t)
	testutil.CreateUser(t, env.UserRepo, "Hero", "hero", "hero@edusys.io", testutil.Password, []string{user.RoleStudent}, true)
	testutil.CreateUser(t, env.UserRepo, "N Dog", "ndog", "ndog@edusys.io", testutil.Password, []string{user.RoleStudent}, false)

	login := func(uname, pwd string) []byte {
		return marshallObj(t, LoginRequest{Username: uname, Password: pwd})
	}
	failed := marshallObj(t, httpErr{Error: "authentication failed"})

	tests := []httpTest{
		{
			name: "required fields", body: login("", ""), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, LoginRequest{Username: "this field is required", Password: "this field is required"}),
		},
		{name: "unknown user", body: login("nobody", testutil.Password), wantCode: http.StatusBadRequest, wantData: failed},
		{name: "wrong password", body: login("hero", "wrong"), wantCode: http.StatusBadRequest, wantData: failed},
		{
			name: "inactive user", body: login("ndog", testutil.Password), wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/login"
	}
	runHTTPTests(t, app, tests)

	for _, uname := range []string{"hero", "HERO", "hero@edusys.io"} {
		t.Run("logged in as "+uname, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", login(uname, testutil.Password))
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp LoginResponse
			decode(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)

			req, rec = newAuthRequest(http.MethodGet, "/v1/users/me", resp.Token)
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
			var me user.User
			decode(t, rec, &me)
			assert.Equal(t, "hero", me.Username)
			assert.False(t, me.LastLogin.IsZero())
		})
	}
}

func Test_userApi_refreshToken(t *testing.T) {
	env, app := newTestServer(t)
	student := env.Student(t, "hero")

	tokens := newTokenIssuer(core.Conf)
	claims := tokens.claimsFor(student, time.Now().Add(-2*core.Conf.Server.JWTRefreshExpirationDelta).Unix())
	unrefreshable, err := tokens.generate(claims)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name: "Refresh period expired", token: unrefreshable, wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "refresh has expired"}),
		},
		{name: "Token refreshed", token: getToken(t, student)},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/token-refresh"
	}
	runHTTPTests(t, app, tests)
}

func Test_userApi_inactiveUserRejected(t *testing.T) {
	env, app := newTestServer(t)
	naughty := testutil.CreateUser(t, env.UserRepo, "N Dog", "ndog", "ndog@edusys.io", "", []string{user.RoleStudent}, false)

	runHTTPTests(t, app, []httpTest{{
		name: "me", method: http.MethodGet, path: "/v1/users/me", token: getToken(t, naughty),
		wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "account deactivated"}),
	}})
}

func Test_userApi_resetPassword(t *testing.T) {
	env, app := newTestServer(t)
	student := env.Student(t, "hero")
	success := marshallObj(t, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})

	tests := []struct {
		httpTest
		emailSent bool
	}{
		{httpTest: httpTest{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, PasswordResetRequest{Email: "this field is required"}),
		}},
		{httpTest: httpTest{
			name: "invalid email", body: marshallObj(t, PasswordResetRequest{Email: "lol"}), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, PasswordResetRequest{Email: "email must be a valid email address"}),
		}},
		{httpTest: httpTest{
			name: "unknown email", body: marshallObj(t, PasswordResetRequest{Email: "lol@edusys.io"}),
			wantCode: http.StatusOK, wantData: success,
		}},
		{httpTest: httpTest{
			name: "known email", body: marshallObj(t, PasswordResetRequest{Email: student.Email}),
			wantCode: http.StatusOK, wantData: success,
		}, emailSent: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			emailsvc.ResetSentMessages()

			req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt.httpTest, rec)

			sent := emailsvc.Sent()
			if !tt.emailSent {
				assert.Empty(t, sent)
				return
			}
			require.Len(t, sent, 1)
			assert.Equal(t, student.Email, sent[0].To[0].Address)
			assert.Equal(t, "Password Reset Request", sent[0].Subject)
			assert.Contains(t, sent[0].TextContent, core.Conf.FrontendBaseURL+"/reset-password/")
		})
	}
}

func Test_userApi_confirmPasswordReset(t *testing.T) {
	env, app := newTestServer(t)
	student := env.Student(t, "hero")
	ctx := context.Background()

	emailsvc.ResetSentMessages()
	require.NoError(t, env.UserSvc.RequestPasswordReset(ctx, student.Email))
	sent := emailsvc.Sent()
	require.Len(t, sent, 1)
	text := sent[0].TextContent
	start := strings.Index(text, "/reset-password/") + len("/reset-password/")
	token := strings.Fields(text[start:])[0]

	const newPwd = "Vb4$kWq9!nRt"
	confirm := func(tok string) []byte {
		return marshallObj(t, user.ResetUserPassword{Token: tok, Password: newPwd, PasswordConfirm: newPwd})
	}

	tests := []httpTest{
		{
			name: "invalid token", body: confirm("lol"), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: user.ErrInvalidResetToken.Error()}),
		},
		{
			name: "valid token", body: confirm(token),
			wantData: marshallObj(t, SuccessResponse{Success: "Password has been reset with the new password."}),
		},
		{
			name: "token is single use", body: confirm(token), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: user.ErrInvalidResetToken.Error()}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/password-reset-confirm"
	}
	runHTTPTests(t, app, tests)

	refreshed, err := env.UserSvc.GetByID(ctx, student.ID)
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword(newPwd))
}

func Test_userApi_admin(t *testing.T) {
	env, app := newTestServer(t)
	admin := env.Admin(t, "admin")
	student := env.Student(t, "hero")
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{name: "Auth required", method: http.MethodGet, path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name: "Admin required", method: http.MethodGet, path: "/v1/users", token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "List users", method: http.MethodGet, path: "/v1/users?ordering=username", token: adminToken, wantData: marshallList(t, admin, student)},
		{name: "Search users", method: http.MethodGet, path: "/v1/users?search=her", token: adminToken, wantData: marshallList(t, student)},
		{name: "Roles", method: http.MethodGet, path: "/v1/users/roles", token: adminToken, wantData: marshallObj(t, user.Roles)},
		{
			name: "Cannot delete self", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: adminToken,
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Delete student", method: http.MethodDelete, path: "/v1/users/" + student.ID, token: adminToken, wantCode: http.StatusNoContent},
		{
			name: "Deleted student is gone", method: http.MethodDelete, path: "/v1/users/" + student.ID, token: adminToken,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: user.ErrNotFound.Error()}),
		},
	}
	runHTTPTests(t, app, tests)
}

func Test_userApi_profile(t *testing.T) {
	env, app := newTestServer(t)
	teacher := env.Teacher(t, "teacher")
	student := env.Student(t, "hero")
	stranger := env.Student(t, "stranger")
	env.Course(t, teacher, student)

	tests := []httpTest{
		{name: "own profile", path: "/v1/users/" + stranger.ID + "/profile", token: getToken(t, stranger)},
		{name: "classmate's teacher", path: "/v1/users/" + student.ID + "/profile", token: getToken(t, teacher)},
		{
			name: "stranger", path: "/v1/users/" + student.ID + "/profile", token: getToken(t, stranger), wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "You are not authorized to view this profile."}),
		},
		{name: "unknown user", path: "/v1/users/lol/profile", token: getToken(t, stranger), wantCode: http.StatusNotFound},
	}
	for i := range tests {
		tests[i].method = http.MethodGet
	}
	runHTTPTests(t, app, tests)
}
