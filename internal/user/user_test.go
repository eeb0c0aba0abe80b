package user

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SlpAus/book-summaries-backend/internal/platform/database"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, MigrateDB(db))
	database.DB = db
	globalRepository = newRepository()
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(EnsureUserCookieMiddleware())
	r.GET("/api/me", GetMe)
	r.PUT("/api/me/username", PutUsername)
	return r
}

func TestMiddlewareProvisionsCookie(t *testing.T) {
	r := newRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, IsValidUUID(cookies[0].Value))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, cookies[0].Value, body["id"], "新ID在首个请求中即生效")
}

func TestMiddlewareKeepsValidCookie(t *testing.T) {
	id, err := CreateProvisionalUser()
	require.NoError(t, err)

	r := newRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: id})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Empty(t, w.Result().Cookies())
	assert.Contains(t, w.Body.String(), id)
}

func TestMiddlewareReplacesInvalidCookie(t *testing.T) {
	r := newRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "not-a-uuid"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Len(t, w.Result().Cookies(), 1)
	assert.NotEqual(t, "not-a-uuid", w.Result().Cookies()[0].Value)
}

func TestSetUsername(t *testing.T) {
	setupDB(t)
	id, _ := CreateProvisionalUser()

	name, err := SetUsername(id, "  Reader One ")
	require.NoError(t, err)
	assert.Equal(t, "Reader One", name)
	assert.Equal(t, "Reader One", Username(id))
	assert.True(t, IsUserActivated(id))

	// 重新预热后昵称仍然存在
	globalRepository = newRepository()
	require.NoError(t, WarmupCache())
	assert.Equal(t, "Reader One", Username(id))
}

func TestSetUsernameRejectsInvalid(t *testing.T) {
	setupDB(t)
	id, _ := CreateProvisionalUser()

	for _, name := range []string{"", "   ", strings.Repeat("x", 33), "bad\nname"} {
		_, err := SetUsername(id, name)
		assert.ErrorIs(t, err, ErrInvalidUsername, name)
	}
	assert.False(t, IsUserActivated(id))
}

func TestPutUsernameHandler(t *testing.T) {
	setupDB(t)
	r := newRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/me/username", strings.NewReader(`{"username":"Booky"}`)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"Booky"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/me/username", strings.NewReader(`{"username":""}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/me/username", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActivateUserIsIdempotent(t *testing.T) {
	setupDB(t)
	id, _ := CreateProvisionalUser()
	require.NoError(t, ActivateUser(id))
	globalRepository = newRepository()
	require.NoError(t, ActivateUser(id))

	var count int64
	database.DB.Model(&User{}).Count(&count)
	assert.EqualValues(t, 1, count)
	assert.Error(t, ActivateUser("nope"))
}
