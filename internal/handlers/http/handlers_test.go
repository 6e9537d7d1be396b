package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"relaychat/internal/core/domain"
	"relaychat/internal/core/services"
	"relaychat/internal/infrastructure/blob"
	"relaychat/internal/infrastructure/middleware"
	"relaychat/internal/infrastructure/repositories/memory"
	apperrors "relaychat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testMediaLimit = 1024

type testAPI struct {
	router *gin.Engine
	auth   services.AuthService
}

func newTestAPI(t *testing.T) *testAPI {
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t).Sugar()

	store, err := blob.NewFileStore(t.TempDir(), "/media")
	require.NoError(t, err)

	users := memory.NewMemoryUserRepository()
	auth := services.NewAuthService(users, store, services.AuthConfig{
		JWTSecret:     "test-secret",
		TokenTTL:      time.Hour,
		BcryptCost:    4,
		MaxMediaBytes: testMediaLimit,
	}, logger)
	chat := services.NewChatService(users, memory.NewMemoryMessageRepository(), store,
		memory.NewConnectionRegistry(), nil, testMediaLimit, logger)

	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(logger))
	NewAuthHandler(auth, CookieConfig{Name: "jwt"}, testMediaLimit, logger).SetupRoutes(router)
	NewMessageHandler(chat, testMediaLimit).SetupRoutes(router, middleware.AuthMiddleware(auth, "jwt"))

	return &testAPI{router: router, auth: auth}
}

func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) signup(t *testing.T, name, email string) (domain.UserID, string) {
	w := a.do(http.MethodPost, "/api/auth/signup", "", SignupRequest{FullName: name, Email: email, Password: "secret1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		ID    domain.UserID `json:"id"`
		Token string        `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.ID, resp.Token
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	var resp apperrors.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Message
}

func pngDataURL(size int) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x89}, size))
}

func TestSignup(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/auth/signup", "", SignupRequest{
		FullName: "Alice Liddell",
		Email:    "Alice@Example.com",
		Password: "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Alice Liddell", body["fullName"])
	assert.Equal(t, "alice@example.com", body["email"])
	assert.NotEmpty(t, body["id"])
	assert.NotEmpty(t, body["token"])
	assert.NotContains(t, w.Body.String(), "secret1")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "jwt", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
	assert.Equal(t, 3600, cookies[0].MaxAge)
}

func TestSignup_Rejections(t *testing.T) {
	api := newTestAPI(t)
	api.signup(t, "Alice", "alice@example.com")

	cases := []struct {
		name   string
		req    SignupRequest
		status int
		msg    string
	}{
		{"duplicate email", SignupRequest{"Other", "ALICE@example.com", "secret1"}, http.StatusConflict, "email already exists"},
		{"short password", SignupRequest{"Bob", "bob@example.com", "abc"}, http.StatusBadRequest, "at least 6 characters"},
		{"missing name", SignupRequest{"", "bob@example.com", "secret1"}, http.StatusBadRequest, "full name"},
		{"bad email", SignupRequest{"Bob", "not-an-email", "secret1"}, http.StatusBadRequest, "email"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := api.do(http.MethodPost, "/api/auth/signup", "", tc.req)
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, errorMessage(t, w), tc.msg)
		})
	}
}

func TestSignup_MalformedBody(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader("{"))
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request format", errorMessage(t, w))
}

func TestLogin(t *testing.T) {
	api := newTestAPI(t)
	id, _ := api.signup(t, "Alice", "alice@example.com")

	w := api.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "alice@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(id))
	assert.NotEmpty(t, w.Result().Cookies())

	for _, req := range []LoginRequest{
		{Email: "alice@example.com", Password: "wrong-pass"},
		{Email: "nobody@example.com", Password: "secret1"},
	} {
		w = api.do(http.MethodPost, "/api/auth/login", "", req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid credentials", errorMessage(t, w))
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "jwt", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestCheck(t *testing.T) {
	api := newTestAPI(t)
	id, token := api.signup(t, "Alice", "alice@example.com")

	w := api.do(http.MethodGet, "/api/auth/check", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(http.MethodGet, "/api/auth/check", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var user domain.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, id, user.ID)

	orphan, err := api.auth.GenerateToken("deleted-user")
	require.NoError(t, err)
	w = api.do(http.MethodGet, "/api/auth/check", orphan, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateProfile(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.signup(t, "Alice", "alice@example.com")

	w := api.do(http.MethodPut, "/api/auth/update-profile", token, UpdateProfileRequest{ProfilePic: pngDataURL(16)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var user domain.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.True(t, strings.HasPrefix(user.ProfilePic, "/media/"), user.ProfilePic)
	assert.True(t, strings.HasSuffix(user.ProfilePic, ".png"), user.ProfilePic)

	w = api.do(http.MethodPut, "/api/auth/update-profile", token, UpdateProfileRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPut, "/api/auth/update-profile", token, UpdateProfileRequest{ProfilePic: "not a data url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPut, "/api/auth/update-profile", token, UpdateProfileRequest{ProfilePic: pngDataURL(testMediaLimit + 1)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestMessages_Flow(t *testing.T) {
	api := newTestAPI(t)
	alice, aliceToken := api.signup(t, "Alice", "alice@example.com")
	bob, bobToken := api.signup(t, "Bob", "bob@example.com")

	w := api.do(http.MethodGet, "/api/messages/users", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var contacts []domain.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &contacts))
	require.Len(t, contacts, 1)
	assert.Equal(t, bob, contacts[0].ID)

	w = api.do(http.MethodPost, "/api/messages/send/"+string(bob), aliceToken, SendMessageRequest{Text: "hi bob"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sent domain.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sent))
	assert.Equal(t, alice, sent.SenderID)
	assert.Equal(t, bob, sent.ReceiverID)

	w = api.do(http.MethodPost, "/api/messages/send/"+string(alice), bobToken, SendMessageRequest{Image: pngDataURL(8)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(http.MethodGet, "/api/messages/"+string(alice), bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []domain.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, "hi bob", history[0].Text)
	assert.True(t, strings.HasPrefix(history[1].Image, "/media/"))
}

func TestMessages_Rejections(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.signup(t, "Alice", "alice@example.com")
	bob, _ := api.signup(t, "Bob", "bob@example.com")

	w := api.do(http.MethodGet, "/api/messages/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(http.MethodPost, "/api/messages/send/ghost", token, SendMessageRequest{Text: "hello?"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodGet, "/api/messages/ghost", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodPost, "/api/messages/send/"+string(bob), token, SendMessageRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/messages/send/"+string(bob), token, SendMessageRequest{Image: pngDataURL(testMediaLimit * 2)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestToAppError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.ErrUserNotFound, http.StatusNotFound},
		{domain.ErrEmailTaken, http.StatusConflict},
		{domain.ErrInvalidCredentials, http.StatusBadRequest},
		{domain.ErrEmptyMessage, http.StatusBadRequest},
		{domain.ErrMediaTooLarge, http.StatusRequestEntityTooLarge},
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{services.ErrExpiredToken, http.StatusUnauthorized},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, toAppError(tc.err, testMediaLimit).HTTPStatus, tc.err.Error())
	}
}
