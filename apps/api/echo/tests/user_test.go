package tests

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/universidad/apps/api/echo"
	"github.com/trezcool/universidad/core/account"
	emailsvc "github.com/trezcool/universidad/services/email"
	"github.com/trezcool/universidad/testutil"
)

func Test_userApi_login(t *testing.T) {
	env := setup(t)
	testutil.CreateUser(t, env.UserRepo, "Hero", "hero@uc.test", "Str0ng&Unique", []string{account.RoleStudent}, true)
	testutil.CreateUser(t, env.UserRepo, "N Dog", "ndog@uc.test", "Str0ng&Unique", []string{account.RoleStudent}, false)

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, echoapi.LoginRequest{Login: reqMsg, Password: reqMsg}),
		},
		{
			name: "unknown login", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, echoapi.LoginRequest{Login: "lol@uc.test", Password: "Str0ng&Unique"}),
			wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, echoapi.LoginRequest{Login: "hero@uc.test", Password: "lol"}),
			wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", wantCode: http.StatusForbidden,
			body:     marshalObj(t, echoapi.LoginRequest{Login: "ndog@uc.test", Password: "Str0ng&Unique"}),
			wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/login"
	}
	runHTTPTests(t, env, tests)

	t.Run("login is case insensitive", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/login",
			marshalObj(t, echoapi.LoginRequest{Login: " HERO@uc.test ", Password: "Str0ng&Unique"}))
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp echoapi.LoginResponse
		unmarshal(t, rec, &resp)
		require.NotEmpty(t, resp.Token)

		claims := new(echoapi.Claims)
		_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(env.Conf.SecretKey), nil
		})
		require.NoError(t, err)
		assert.Equal(t, "hero@uc.test", claims.Login)
		assert.True(t, claims.IsStudent)
		assert.False(t, claims.IsAdmin)

		usr, err := env.Accounts.GetByLogin(context.Background(), "hero@uc.test")
		require.NoError(t, err)
		assert.False(t, usr.LastLogin.IsZero(), "last login must be recorded")
	})
}

func Test_userApi_query(t *testing.T) {
	env := setup(t)

	path := func(search, ordering string, isActive *bool, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/v1/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	now := time.Now()
	usr1 := testutil.CreateUser(t, env.UserRepo, "User", "awe@uc.test", "", nil, true, now)
	student := testutil.CreateUser(t, env.UserRepo, "Hero", "user3@uc.test", "", []string{account.RoleStudent}, true, now.Add(1*time.Hour))
	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin@uc.test", "", []string{account.RoleAdmin}, true, now.Add(2*time.Hour))
	owner := testutil.CreateUser(t, env.UserRepo, "Owner", "owner@uc.test", "", []string{account.RoleAdminOwner}, true, now.Add(3*time.Hour))
	prof := testutil.CreateUser(t, env.UserRepo, "Professor", "prof@uc.test", "", []string{account.RoleProfessor}, true, now.Add(4*time.Hour))
	naughty := testutil.CreateUser(t, env.UserRepo, "N Dog", "ndog@uc.test", "", []string{account.RoleStudent}, false, now.Add(5*time.Hour))

	adminToken := getToken(t, env.Conf, admin)
	empty := marshalList(t)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/users", token: getToken(t, env.Conf, student), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Get all", path: "/v1/users", token: adminToken,
			wantData: marshalList(t, usr1, student, admin, owner, prof, naughty),
		},
		// filtering
		{name: "search (unknown)", path: path("lol", "", nil), token: adminToken, wantData: empty},
		{name: "search=USE", path: path("USE", "", nil), token: adminToken, wantData: marshalList(t, usr1, student)},
		{name: "role (unknown)", path: path("", "", nil, "lol"), token: adminToken, wantData: empty},
		{name: "role=admin:", path: path("", "", nil, account.RoleAdmin), token: adminToken, wantData: marshalList(t, admin, owner)},
		{
			name: "role=professor:,student:", path: path("", "", nil, account.RoleProfessor, account.RoleStudent),
			token: adminToken, wantData: marshalList(t, student, prof, naughty),
		},
		{name: "is_active=false", path: path("", "", bPtr(false)), token: adminToken, wantData: marshalList(t, naughty)},
		{
			name: "all combo (found)", path: path("prof", "", bPtr(true), account.RoleProfessor),
			token: adminToken, wantData: marshalList(t, prof),
		},
		// ordering
		{
			name: "order by -created_at", path: path("", "-created_at", nil), token: adminToken,
			wantData: marshalList(t, naughty, prof, owner, admin, student, usr1),
		},
		{
			name: "order by name", path: path("", "name", nil), token: adminToken,
			wantData: marshalList(t, admin, student, naughty, owner, prof, usr1),
		},
		{
			name: "filtering & ordering", path: path("", "-name", nil, account.RoleProfessor, account.RoleStudent), token: adminToken,
			wantData: marshalList(t, prof, naughty, student),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodGet
	}
	runHTTPTests(t, env, tests)
}

func Test_userApi_detail(t *testing.T) {
	env := setup(t)

	student := testutil.CreateUser(t, env.UserRepo, "Hero", "hero@uc.test", "", []string{account.RoleStudent}, true)
	other := testutil.CreateUser(t, env.UserRepo, "Other", "other@uc.test", "", []string{account.RoleStudent}, true)
	admin := env.admin(t)

	studentToken := getToken(t, env.Conf, student)
	adminToken := getToken(t, env.Conf, admin)

	tests := []httpTest{
		{name: "own account", method: http.MethodGet, path: "/v1/users/" + student.ID, token: studentToken, wantData: marshalObj(t, student)},
		{name: "me", method: http.MethodGet, path: "/v1/users/me", token: studentToken, wantData: marshalObj(t, student)},
		{
			name: "someone else's account", method: http.MethodGet, path: "/v1/users/" + other.ID, token: studentToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "not found"}),
		},
		{name: "admin sees all", method: http.MethodGet, path: "/v1/users/" + other.ID, token: adminToken, wantData: marshalObj(t, other)},
		{
			name: "non admin cannot set roles", method: http.MethodPut, path: "/v1/users/" + student.ID, token: studentToken,
			body:     []byte(`{"roles": ["admin:"]}`),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "admin cannot grant a higher role", method: http.MethodPut, path: "/v1/users/" + other.ID, token: adminToken,
			body:     []byte(`{"roles": ["admin:owner"]}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"roles": "not enough rights to set these roles"}`),
		},
		{
			name: "invalid roles", method: http.MethodPut, path: "/v1/users/" + other.ID, token: adminToken,
			body:     []byte(`{"roles": ["lol"]}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"roles": "invalid roles"}`),
		},
		{
			name: "login already used", method: http.MethodPut, path: "/v1/users/" + other.ID, token: adminToken,
			body:     []byte(`{"email": "hero@uc.test"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"email": "an account with this login already exists"}`),
		},
		{
			name: "cannot delete oneself", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: adminToken,
			wantCode: http.StatusForbidden,
		},
		{
			name: "cannot delete oneself among others", method: http.MethodDelete, path: "/v1/users?id=" + other.ID + "&id=" + admin.ID,
			token: adminToken, wantCode: http.StatusForbidden,
		},
	}
	runHTTPTests(t, env, tests)

	t.Run("update own name", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/"+student.ID, studentToken, []byte(`{"name": " Super Hero "}`))
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var usr account.User
		unmarshal(t, rec, &usr)
		assert.Equal(t, "Super Hero", usr.Name)
		assert.Equal(t, student.Email, usr.Email)
	})

	t.Run("admin deletes a user", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users/"+other.ID, adminToken)
		env.serve(req, rec)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		_, err := env.Accounts.Get(context.Background(), other.ID)
		assert.Equal(t, account.ErrNotFound, err)
	})
}

func Test_userApi_register(t *testing.T) {
	env := setup(t)
	admin := env.admin(t)
	adminToken := getToken(t, env.Conf, admin)

	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: []byte(`{"name": "this field is required", "email": "this field is required"}`),
		},
		{
			name: "password policy", wantCode: http.StatusBadRequest,
			body:     []byte(`{"name": "Clerk", "email": "clerk@uc.test", "password": "lol12345", "password_confirm": "lol12345"}`),
			wantData: []byte(`{"password": "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"}`),
		},
		{
			name: "cannot grant a higher role", wantCode: http.StatusBadRequest,
			body:     []byte(`{"name": "Clerk", "email": "clerk@uc.test", "roles": ["admin:owner"]}`),
			wantData: []byte(`{"roles": "not enough rights to set these roles"}`),
		},
		{
			name: "login already used", wantCode: http.StatusBadRequest,
			body:     []byte(`{"name": "Clerk", "email": "ADMIN@uc.test"}`),
			wantData: []byte(`{"email": "an account with this login already exists"}`),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/register"
		tests[i].token = adminToken
	}
	runHTTPTests(t, env, tests)

	t.Run("created", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", adminToken,
			[]byte(`{"name": "Clerk", "email": "Clerk@uc.test", "password": "Str0ng&Unique", "password_confirm": "Str0ng&Unique", "roles": ["admin:"]}`))
		env.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var usr account.User
		unmarshal(t, rec, &usr)
		assert.Equal(t, "clerk@uc.test", usr.Login)
		assert.Equal(t, []string{account.RoleAdmin}, usr.Roles)
		assert.True(t, usr.IsActive)
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	env := setup(t)

	naughty := testutil.CreateUser(t, env.UserRepo, "N Dog", "ndog@uc.test", "", []string{account.RoleStudent}, false)
	student := testutil.CreateUser(t, env.UserRepo, "Hero", "hero@uc.test", "", []string{account.RoleStudent}, true)

	claims := echoapi.GetUserClaims(env.Conf, student)
	claims.OrigIssuedAt = time.Now().Add(-2 * env.Conf.Server.JWTRefreshExpirationDelta).Unix() // older than threshold
	unrefreshableToken, err := echoapi.GenerateToken(env.Conf, claims)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "Inactive user not allowed", token: getToken(t, env.Conf, naughty),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "Refresh period expired", token: unrefreshableToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "refresh has expired"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/token-refresh"
	}
	runHTTPTests(t, env, tests)

	t.Run("Token refreshed", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", getToken(t, env.Conf, student))
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		// cannot guess new token.. just check that it's not empty
		var resp echoapi.LoginResponse
		unmarshal(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
	})
}

func Test_userApi_resetPassword(t *testing.T) {
	env := setup(t)

	student := testutil.CreateUser(t, env.UserRepo, "Hero", "hero@uc.test", "", []string{account.RoleStudent}, true)
	successData := marshalObj(t, echoapi.SuccessResponse{Success: "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."})
	pathRegex := regexp.MustCompile("/password-reset/.+/.+")

	tests := []struct {
		httpTest
		emailSent bool
	}{
		{httpTest: httpTest{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, echoapi.PasswordResetRequest{Email: "this field is required"}),
		}},
		{httpTest: httpTest{
			name: "invalid email", wantCode: http.StatusBadRequest, body: marshalObj(t, echoapi.PasswordResetRequest{Email: "lol"}),
			wantData: marshalObj(t, echoapi.PasswordResetRequest{Email: "email must be a valid email address"}),
		}},
		{httpTest: httpTest{
			name: "unknown email", wantCode: http.StatusOK, body: marshalObj(t, echoapi.PasswordResetRequest{Email: "lol@uc.test"}),
			wantData: successData,
		}},
		{httpTest: httpTest{
			name: "known email", wantCode: http.StatusOK, body: marshalObj(t, echoapi.PasswordResetRequest{Email: student.Email}),
			wantData: successData,
		}, emailSent: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			emailsvc.ResetSentMessages()

			req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", tt.body)
			env.serve(req, rec)
			checkCodeAndData(t, tt.httpTest, rec)

			sent := emailsvc.SentMessages()
			if !tt.emailSent {
				assert.Empty(t, sent)
				return
			}
			require.Len(t, sent, 1)
			msg := sent[0]
			assert.Equal(t, student.Email, msg.To[0].Address)
			assert.True(t, strings.Contains(msg.TextContent, student.Name), "text content does not contain recipient's name")
			assert.True(t, strings.Contains(msg.HTMLContent, student.Name), "HTML content does not contain recipient's name")
			assert.Regexp(t, pathRegex, msg.TextContent)
			assert.Regexp(t, pathRegex, msg.HTMLContent)
		})
	}
}

func Test_userApi_confirmPasswordReset(t *testing.T) {
	env := setup(t)

	student := testutil.CreateUser(t, env.UserRepo, "Hero", "hero@uc.test", "", []string{account.RoleStudent}, true)
	link := env.Accounts.PasswordResetLink(student)
	parts := strings.Split(strings.TrimPrefix(link, env.Conf.FrontendBaseURL+"/password-reset/"), "/")
	require.Len(t, parts, 2, link)
	validUID, validToken := parts[0], parts[1]

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, account.ResetUserPassword{Token: reqMsg, UID: reqMsg, Password: "password must contain at least 8 characters", PasswordConfirm: reqMsg}),
		},
		{
			name: "invalid pwd: min len", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, account.ResetUserPassword{Token: "lol", UID: "lol", Password: "lol", PasswordConfirm: "lol"}),
			wantData: marshalObj(t, account.ResetUserPassword{Password: "password must contain at least 8 characters"}),
		},
		{
			name: "invalid pwd: no whitespace", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, account.ResetUserPassword{Token: "lol", UID: "lol", Password: "l o loll", PasswordConfirm: "l o loll"}),
			wantData: marshalObj(t, account.ResetUserPassword{Password: "password must not contain whitespace"}),
		},
		{
			name: "invalid pwd: not all numeric", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, account.ResetUserPassword{Token: "lol", UID: "lol", Password: "12345678", PasswordConfirm: "12345678"}),
			wantData: marshalObj(t, account.ResetUserPassword{Password: "password cannot be entirely numeric"}),
		},
		{
			name: "invalid pwd: too common", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, account.ResetUserPassword{Token: "lol", UID: "lol", Password: "P@ssw0rd1", PasswordConfirm: "P@ssw0rd1"}),
			wantData: marshalObj(t, account.ResetUserPassword{Password: "password is too common"}),
		},
		{
			name: "PasswordConfirm must = Password", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, account.ResetUserPassword{Token: "lol", UID: "lol", Password: "LolC@t123", PasswordConfirm: "lol"}),
			wantData: marshalObj(t, account.ResetUserPassword{PasswordConfirm: "password_confirm must be equal to Password"}),
		},
		{
			name: "invalid uid", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, account.ResetUserPassword{Token: "lol", UID: "bG9s", Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marshalObj(t, account.ResetUserPassword{UID: "invalid value"}),
		},
		{
			name: "invalid token", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, account.ResetUserPassword{Token: "HE4TS-sigsig-sig", UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marshalObj(t, account.ResetUserPassword{Token: "invalid value"}),
		},
		{
			name: "valid token", wantCode: http.StatusOK,
			body:     marshalObj(t, account.ResetUserPassword{Token: validToken, UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marshalObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/password-reset-confirm"
	}
	runHTTPTests(t, env, tests)

	refreshed, err := env.Accounts.Get(context.Background(), student.ID)
	require.NoError(t, err)
	assert.NotEqual(t, student.PasswordHash, refreshed.PasswordHash, "failed to update new password")
	assert.NoError(t, refreshed.CheckPassword("LolC@t123"))
}
