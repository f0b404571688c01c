package echoapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studywala/backend/core/user"
)

const testPassword = "V3ryS3cur3#Pass"

func Test_server_health(t *testing.T) {
	env := setup(t)

	req, rec := newRequest(http.MethodGet, "/health")
	env.server.ServeHTTP(rec, req)

	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: []byte(`{"status":"ok","env":"TEST","version":"test"}`),
	}, rec)
}

func Test_userApi_register(t *testing.T) {
	env := setup(t)

	t.Run("ok", func(t *testing.T) {
		body := marchallObj(t, user.NewUser{
			Name:            "Jane Doe",
			Username:        "janedoe",
			Email:           "jane@test.cd",
			Password:        testPassword,
			PasswordConfirm: testPassword,
		})
		req, rec := newRequest(http.MethodPost, "/v1/users/register", body)
		env.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var usr user.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usr))
		assert.NotEmpty(t, usr.ID)
		assert.Equal(t, "Jane Doe", usr.Name)
		assert.Equal(t, "janedoe", usr.Username)
		assert.Equal(t, "jane@test.cd", usr.Email)
		assert.True(t, usr.IsActive)
		assert.NotContains(t, rec.Body.String(), "password")

		// a welcome email goes out
		msg := waitForSentMessage(t, sentTo("welcome", "jane@test.cd"))
		require.Len(t, msg.To, 1)
		assert.Equal(t, "Jane Doe", msg.To[0].Name)
	})

	t.Run("duplicate username", func(t *testing.T) {
		body := marchallObj(t, user.NewUser{
			Name:            "Jane Again",
			Username:        "janedoe",
			Email:           "jane2@test.cd",
			Password:        testPassword,
			PasswordConfirm: testPassword,
		})
		req, rec := newRequest(http.MethodPost, "/v1/users/register", body)
		env.server.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "username")
	})

	t.Run("password mismatch", func(t *testing.T) {
		body := marchallObj(t, user.NewUser{
			Name:            "Jim Doe",
			Username:        "jimdoe01",
			Password:        testPassword,
			PasswordConfirm: "s0mething#Else1",
		})
		req, rec := newRequest(http.MethodPost, "/v1/users/register", body)
		env.server.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "password_confirm")
	})

	t.Run("weak password rejected", func(t *testing.T) {
		body := marchallObj(t, user.NewUser{
			Name:            "Jim Doe",
			Username:        "jimdoe01",
			Password:        "qwertyuiop",
			PasswordConfirm: "qwertyuiop",
		})
		req, rec := newRequest(http.MethodPost, "/v1/users/register", body)
		env.server.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "password")
	})
}

func Test_userApi_login(t *testing.T) {
	env := setup(t)

	usr := createUser(t, env.usrSvc, "John Doe", "johndoe", "john@test.cd", testPassword)

	inactive := createUser(t, env.usrSvc, "Gone Guy", "goneguy", "gone@test.cd", testPassword)
	no := false
	_, err := env.usrSvc.Update(inactive.ID, user.UpdateUser{IsActive: &no})
	require.NoError(t, err)

	tests := []httpTest{
		{
			name:     "username login ok",
			body:     marchallObj(t, LoginRequest{Username: usr.Username, Password: testPassword}),
			wantCode: http.StatusOK,
		},
		{
			name:     "email login ok",
			body:     marchallObj(t, LoginRequest{Username: usr.Email, Password: testPassword}),
			wantCode: http.StatusOK,
		},
		{
			name:     "username is case-insensitive",
			body:     marchallObj(t, LoginRequest{Username: "JohnDoe", Password: testPassword}),
			wantCode: http.StatusOK,
		},
		{
			name:     "wrong password",
			body:     marchallObj(t, LoginRequest{Username: usr.Username, Password: "n0tTheRight#1"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "unknown user",
			body:     marchallObj(t, LoginRequest{Username: "nobody", Password: testPassword}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated account",
			body:     marchallObj(t, LoginRequest{Username: inactive.Username, Password: testPassword}),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name:     "missing fields",
			body:     marchallObj(t, LoginRequest{Username: usr.Username}),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			env.server.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				var res LoginResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
				assert.NotEmpty(t, res.Token)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_passwordReset(t *testing.T) {
	env := setup(t)

	usr := createUser(t, env.usrSvc, "John Doe", "johndoe", "john@test.cd", testPassword)
	successMsg := "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."

	// request a reset
	body := marchallObj(t, PasswordResetRequest{Email: usr.Email})
	req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", body)
	env.server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, SuccessResponse{Success: successMsg})}, rec)

	// an unknown email gets the same answer; no mail goes out for it
	body = marchallObj(t, PasswordResetRequest{Email: "nobody@test.cd"})
	req, rec = newRequest(http.MethodPost, "/v1/users/password-reset", body)
	env.server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, SuccessResponse{Success: successMsg})}, rec)

	// grab the reset link from the outbox
	msg := waitForSentMessage(t, sentTo("password-reset", usr.Email))
	require.Len(t, msg.To, 1)
	assert.Equal(t, usr.Email, msg.To[0].Address)

	data, ok := msg.TemplateData.(map[string]interface{})
	require.True(t, ok)
	link, ok := data["Link"].(string)
	require.True(t, ok)
	assert.Contains(t, msg.TextContent, link)

	linkURL, err := url.Parse(link)
	require.NoError(t, err)
	uid := linkURL.Query().Get("uid")
	token := linkURL.Query().Get("token")
	require.NotEmpty(t, uid)
	require.NotEmpty(t, token)

	// a tampered token is rejected
	newPwd := "An0ther#Secret9"
	body = marchallObj(t, user.ResetUserPassword{
		Token:           token + "x",
		UID:             uid,
		Password:        newPwd,
		PasswordConfirm: newPwd,
	})
	req, rec = newRequest(http.MethodPost, "/v1/users/password-reset-confirm", body)
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// the real one works
	body = marchallObj(t, user.ResetUserPassword{
		Token:           token,
		UID:             uid,
		Password:        newPwd,
		PasswordConfirm: newPwd,
	})
	req, rec = newRequest(http.MethodPost, "/v1/users/password-reset-confirm", body)
	env.server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, SuccessResponse{Success: "Password has been reset with the new password."}),
	}, rec)

	// old password no longer logs in; new one does
	req, rec = newRequest(http.MethodPost, "/v1/users/login", marchallObj(t, LoginRequest{Username: usr.Username, Password: testPassword}))
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req, rec = newRequest(http.MethodPost, "/v1/users/login", marchallObj(t, LoginRequest{Username: usr.Username, Password: newPwd}))
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func Test_userApi_me(t *testing.T) {
	env := setup(t)

	usr := createUser(t, env.usrSvc, "John Doe", "johndoe", "john@test.cd", testPassword)
	token := getToken(t, usr)

	t.Run("requires auth", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/users/me")
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("retrieve", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", token)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, usr)}, rec)
	})

	t.Run("update", func(t *testing.T) {
		body := []byte(`{"name": "Johnny B. Goode", "is_active": false}`)
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/me", token, body)
		env.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var updated user.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
		assert.Equal(t, "Johnny B. Goode", updated.Name)
		assert.True(t, updated.IsActive, "deactivation is not self-service")
	})
}

func Test_userApi_tokenRefresh(t *testing.T) {
	env := setup(t)

	usr := createUser(t, env.usrSvc, "John Doe", "johndoe", "john@test.cd", testPassword)

	t.Run("ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", getToken(t, usr))
		env.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.NotEmpty(t, res.Token)
	})

	t.Run("refresh window expired", func(t *testing.T) {
		oriat := time.Now().Add(-5 * time.Hour).Unix()
		token, err := GenerateToken(GetUserClaims(usr, oriat))
		require.NoError(t, err)

		req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", token)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		}, rec)
	})
}
