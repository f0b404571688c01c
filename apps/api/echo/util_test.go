package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studywala/backend/core"
	"github.com/studywala/backend/core/plan"
	"github.com/studywala/backend/core/user"
	emailsvc "github.com/studywala/backend/services/email"
	exportsvc "github.com/studywala/backend/services/export"
	inmemdb "github.com/studywala/backend/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

type testEnv struct {
	server  Server
	conf    *core.Config
	usrSvc  *user.Service
	planSvc *plan.Service
}

func testConfig() *core.Config {
	return &core.Config{
		Env:                       "TEST",
		TestMode:                  true,
		Build:                     "test",
		AppName:                   "StudyWala",
		SecretKey:                 []byte("+=secret-test-key=+"),
		FrontendBaseURL:           "http://localhost:3000",
		WorkDir:                   filepath.Join("..", "..", ".."),
		DefaultFromEmail:          mail.Address{Name: "StudyWala", Address: "noreply@studywala.test"},
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        1 * time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	conf := testConfig()
	logger := testLogger{t}

	db := inmemdb.NewDB()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(conf, inmemdb.NewUserRepository(db), mailSvc)
	planSvc := plan.NewService(inmemdb.NewPlanRepository(db), nil)

	validate := validator.New()
	translator := newTestTranslator(t)
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator, conf.WorkDir)
	core.ParseEmailTemplates(conf, logger)
	emailsvc.ClearSentMessages()

	server := NewServer(
		&ServerDeps{
			Conf:           conf,
			Logger:         logger,
			UserSvc:        usrSvc,
			PlanSvc:        planSvc,
			ExportSvc:      exportsvc.NewService(),
			Validate:       validate,
			Translator:     translator,
			DisableReqLogs: true,
		},
	)
	return &testEnv{server: server, conf: conf, usrSvc: usrSvc, planSvc: planSvc}
}

func newTestTranslator(t *testing.T) ut.Translator {
	t.Helper()
	enLocale := en.New()
	translator, found := ut.New(enLocale, enLocale).GetTranslator("en")
	if !found {
		t.Fatal("en translator not found")
	}
	return translator
}

type testLogger struct{ t *testing.T }

func (l testLogger) Debug(msg string, args ...interface{}) { l.t.Logf("DEBUG: %s %v", msg, args) }
func (l testLogger) Info(msg string, args ...interface{})  { l.t.Logf("INFO: %s %v", msg, args) }
func (l testLogger) Warn(msg string, args ...interface{})  { l.t.Logf("WARN: %s %v", msg, args) }
func (l testLogger) Error(msg string, args ...interface{}) { l.t.Logf("ERROR: %s %v", msg, args) }
func (l testLogger) Fatal(msg string, args ...interface{}) { l.t.Fatalf("FATAL: %s %v", msg, args) }

func createUser(t *testing.T, svc *user.Service, name, uname, email, pwd string) user.User {
	t.Helper()
	usr, err := svc.Create(user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
	})
	require.NoError(t, err)
	if email != "" {
		// the welcome mail goes out from a goroutine; drain it so it cannot
		// land in another test's outbox
		waitForSentMessage(t, sentTo("welcome", email))
	}
	return usr
}

// sentTo matches an outbox message by template and recipient.
func sentTo(templateName, email string) func(core.EmailMessage) bool {
	return func(m core.EmailMessage) bool {
		return m.TemplateName == templateName && len(m.To) == 1 && m.To[0].Address == email
	}
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %v", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// waitForSentMessage polls the mock outbox for a message matching pred;
// some mails are sent from goroutines.
func waitForSentMessage(t *testing.T, pred func(core.EmailMessage) bool) core.EmailMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, msg := range emailsvc.GetSentMessages() {
			if pred(msg) {
				return msg
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected email was never sent")
	return core.EmailMessage{}
}
