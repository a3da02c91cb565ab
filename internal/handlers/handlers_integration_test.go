package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"lifelog/internal/handlers"
	"lifelog/internal/middleware"
	"lifelog/internal/models"
	"lifelog/internal/repositories"
	"lifelog/internal/services"
	"lifelog/pkg/imagestore"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupApp builds a Fiber app for testing with in-memory SQLite and the
// in-memory image store.
func setupApp(t *testing.T) (*fiber.App, *imagestore.MemStore) {
	t.Helper()

	viper.SetDefault("JWT_SECRET", "test_jwt_secret")
	viper.AutomaticEnv()
	jwtSecret := viper.GetString("JWT_SECRET")

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Entry{}))

	store := imagestore.NewMemStore()

	userRepo := repositories.NewGORMUserRepository(db)
	entryRepo := repositories.NewGORMEntryRepository(db)

	authService := services.NewAuthService(userRepo, store, jwtSecret)
	entryService := services.NewEntryService(entryRepo, store, nil) // nil RabbitMQ client

	authHandler := handlers.NewAuthHandler(authService)
	entryHandler := handlers.NewEntryHandler(entryService)

	app := fiber.New()
	api := app.Group("/api")
	guard := middleware.SessionGuard(authService)
	authHandler.RegisterRoutes(api, guard)
	entryHandler.RegisterRoutes(api, guard)

	return app, store
}

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func jsonRequest(method, target string, body interface{}, cookie *http.Cookie) *http.Request {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == services.SessionCookie {
			return c
		}
	}
	return nil
}

// signup registers a fresh user and returns its session cookie.
func signup(t *testing.T, app *fiber.App, username, email string) *http.Cookie {
	t.Helper()
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/signup", map[string]string{
		"username": username,
		"email":    email,
		"password": "password123",
	}, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	require.NotEmpty(t, cookie.Value)
	return cookie
}

func TestSignupAndLogin(t *testing.T) {
	app, _ := setupApp(t)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/signup", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "password123",
	}, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// The profile never carries the password hash, under any key.
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotContains(t, strings.ToLower(string(raw)), "password")

	var signupResp struct {
		Message string               `json:"message"`
		User    models.PublicProfile `json:"user"`
	}
	require.NoError(t, json.Unmarshal(raw, &signupResp))
	assert.Equal(t, "alice", signupResp.User.Username)
	assert.NotEmpty(t, signupResp.User.ID)

	// Duplicate email is rejected as a client error.
	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/auth/signup", map[string]string{
		"username": "alice2",
		"email":    "alice@example.com",
		"password": "password123",
	}, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Duplicate username trips the unique index, also a client error.
	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/auth/signup", map[string]string{
		"username": "alice",
		"email":    "alice-other@example.com",
		"password": "password123",
	}, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Login with the same credentials succeeds and opens a session.
	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
	}, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, sessionCookie(resp))
	resp.Body.Close()

	// Wrong password and unknown email yield the same generic 400.
	for _, creds := range []map[string]string{
		{"email": "alice@example.com", "password": "wrongpass1"},
		{"email": "nobody@example.com", "password": "password123"},
	} {
		resp, err = app.Test(jsonRequest(http.MethodPost, "/api/auth/login", creds, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Invalid credentials", body["message"])
		resp.Body.Close()
	}
}

func TestSignupValidationRules(t *testing.T) {
	app, _ := setupApp(t)

	cases := []map[string]string{
		{"username": "bob", "email": "bob@example.com", "password": "pass word"}, // whitespace
		{"username": "bob", "email": "bob@example.com", "password": "abc12"},     // too short
		{"username": "bo b", "email": "bob@example.com", "password": "password123"},
		{"username": "", "email": "bob@example.com", "password": "password123"},
	}
	for _, body := range cases {
		resp, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/signup", body, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	}

	// None of the rejected signups created an account.
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "bob@example.com",
		"password": "password123",
	}, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	app, _ := setupApp(t)

	for _, tc := range []struct {
		method string
		target string
	}{
		{http.MethodGet, "/api/auth/profile"},
		{http.MethodPut, "/api/auth/update-profile"},
		{http.MethodGet, "/api/auth/check-auth"},
		{http.MethodPost, "/api/entry/create"},
		{http.MethodGet, "/api/entry/all"},
		{http.MethodGet, "/api/entry/some-id"},
		{http.MethodPut, "/api/entry/edit/some-id"},
		{http.MethodDelete, "/api/entry/some-id"},
	} {
		resp, err := app.Test(jsonRequest(tc.method, tc.target, nil, nil), -1)
		require.NoError(t, err)
		assert.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", tc.method, tc.target)
		resp.Body.Close()
	}
}

func TestCheckAuth(t *testing.T) {
	app, _ := setupApp(t)
	cookie := signup(t, app, "carol", "carol@example.com")

	resp, err := app.Test(jsonRequest(http.MethodGet, "/api/auth/check-auth", nil, cookie), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Valid bool                 `json:"valid"`
		User  models.PublicProfile `json:"user"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Valid)
	assert.Equal(t, "carol", body.User.Username)
	resp.Body.Close()

	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/auth/check-auth", nil, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestLogoutClearsSession(t *testing.T) {
	app, _ := setupApp(t)
	cookie := signup(t, app, "dave", "dave@example.com")

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/logout", nil, cookie), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	cleared := sessionCookie(resp)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	resp.Body.Close()

	// A protected call with the now-cleared cookie is unauthenticated.
	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/auth/profile", nil, cleared), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Logout is idempotent.
	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/auth/logout", nil, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestUpdateProfile(t *testing.T) {
	app, store := setupApp(t)
	cookie := signup(t, app, "erin", "erin@example.com")

	// Set an avatar.
	resp, err := app.Test(jsonRequest(http.MethodPut, "/api/auth/update-profile", map[string]string{
		"profilePic": "YXZhdGFy",
	}, cookie), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var profile models.PublicProfile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&profile))
	assert.NotEmpty(t, profile.ProfilePic)
	assert.True(t, store.Has(profile.ProfilePic))
	resp.Body.Close()

	// Remove it again: the external image is released too.
	resp, err = app.Test(jsonRequest(http.MethodPut, "/api/auth/update-profile", map[string]string{
		"profilePic": "",
	}, cookie), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var clearedProfile models.PublicProfile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&clearedProfile))
	assert.Empty(t, clearedProfile.ProfilePic)
	assert.Equal(t, 0, store.Len())
	resp.Body.Close()
}

func TestEntryCRUDFlow(t *testing.T) {
	app, store := setupApp(t)
	owner := signup(t, app, "frank", "frank@example.com")
	intruder := signup(t, app, "grace", "grace@example.com")

	// Create.
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/entry/create", map[string]interface{}{
		"title":   "First day",
		"content": "We went hiking.",
		"images":  []string{"aW1nMQ==", "aW1nMg=="},
	}, owner), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.ID)
	require.Len(t, created.Images, 2)
	resp.Body.Close()

	// Missing title is a validation error.
	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/entry/create", map[string]interface{}{
		"content": "No title",
	}, owner), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// List.
	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/entry/all", nil, owner), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []models.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, created.ID, entries[0].ID)
	resp.Body.Close()

	// The intruder sees an empty journal and cannot touch the entry.
	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/entry/all", nil, intruder), -1)
	require.NoError(t, err)
	var intruderEntries []models.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&intruderEntries))
	assert.Empty(t, intruderEntries)
	resp.Body.Close()

	for _, tc := range []struct {
		method string
		target string
		body   interface{}
	}{
		{http.MethodGet, "/api/entry/" + created.ID, nil},
		{http.MethodPut, "/api/entry/edit/" + created.ID, map[string]string{"title": "Hijacked"}},
		{http.MethodDelete, "/api/entry/" + created.ID, nil},
	} {
		resp, err = app.Test(jsonRequest(tc.method, tc.target, tc.body, intruder), -1)
		require.NoError(t, err)
		assert.Equalf(t, http.StatusForbidden, resp.StatusCode, "%s %s", tc.method, tc.target)
		resp.Body.Close()
	}

	// Get by ID.
	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/entry/"+created.ID, nil, owner), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched models.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fetched))
	assert.Equal(t, created.ID, fetched.ID)
	resp.Body.Close()

	// Unknown entry is 404.
	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/entry/no-such-id", nil, owner), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Edit replaces the image set wholesale and keeps the owner.
	resp, err = app.Test(jsonRequest(http.MethodPut, "/api/entry/edit/"+created.ID, map[string]interface{}{
		"title":  "First day, revised",
		"images": []string{"bmV3MQ=="},
	}, owner), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var edited models.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&edited))
	assert.Equal(t, "First day, revised", edited.Title)
	assert.Equal(t, "We went hiking.", edited.Content)
	assert.Equal(t, created.UserID, edited.UserID)
	require.Len(t, edited.Images, 1)
	for _, oldRef := range created.Images {
		assert.False(t, store.Has(oldRef))
	}
	assert.True(t, store.Has(edited.Images[0]))
	resp.Body.Close()

	// Delete releases the remaining image and removes the record.
	resp, err = app.Test(jsonRequest(http.MethodDelete, "/api/entry/"+created.ID, nil, owner), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var deleteResp map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&deleteResp))
	assert.Equal(t, "Memory deleted successfully!", deleteResp["message"])
	resp.Body.Close()

	assert.Equal(t, 0, store.Len())

	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/entry/"+created.ID, nil, owner), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/entry/all", nil, owner), -1)
	require.NoError(t, err)
	var remaining []models.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&remaining))
	assert.Empty(t, remaining)
	resp.Body.Close()
}

func TestCreateEntryFailedUploadPersistsNothing(t *testing.T) {
	app, store := setupApp(t)
	cookie := signup(t, app, "heidi", "heidi@example.com")

	store.FailUploadFor("YnJva2Vu", fmt.Errorf("image upload failed"))

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/entry/create", map[string]interface{}{
		"title":   "Doomed",
		"content": "One image will not make it.",
		"images":  []string{"Zmlyc3Q=", "YnJva2Vu"},
	}, cookie), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	resp.Body.Close()

	// No entry is visible afterwards.
	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/entry/all", nil, cookie), -1)
	require.NoError(t, err)
	var entries []models.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	assert.Empty(t, entries)
	resp.Body.Close()
}
