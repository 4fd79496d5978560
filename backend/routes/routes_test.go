package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"philosofium/backend/catalog"
	"philosofium/backend/config"
	"philosofium/backend/models"
	"philosofium/backend/progress"
	"philosofium/backend/storage/gormstore"
	"philosofium/backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	app        *fiber.App
	cfg        *config.Config
	adminToken string
}

func setupApp(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		DBDriver:     "sqlite",
		DBPath:       ":memory:",
		StoreBackend: config.StoreGorm,
		JWTSecret:    "testsecret",
		JWTTTL:       time.Hour,
	}
	log := utils.NewNopLogger()

	db, err := utils.InitDB(cfg)
	require.NoError(t, err)
	store := gormstore.New(db, log)
	require.NoError(t, store.Migrate(context.Background()))

	hash, err := bcrypt.GenerateFromPassword([]byte("adminpass"), bcrypt.MinCost)
	require.NoError(t, err)
	admin := models.User{Username: "admin", Email: "admin@example.com", PasswordHash: string(hash), Role: models.RoleAdmin}
	require.NoError(t, db.Create(&admin).Error)
	adminToken, err := utils.GenerateJWTToken(admin.ID, admin.Role, cfg)
	require.NoError(t, err)

	cat := catalog.New(db, log)
	svc := progress.NewService(store, cat, log)

	app := fiber.New()
	SetupRoutes(app, db, cfg, cat, svc, log)
	return &testEnv{app: app, cfg: cfg, adminToken: "Bearer " + adminToken}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)

	var result map[string]interface{}
	if resp.Header.Get("Content-Type") == fiber.MIMEApplicationJSON {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	}
	return resp, result
}

func data(result map[string]interface{}) map[string]interface{} {
	d, _ := result["data"].(map[string]interface{})
	return d
}

func (e *testEnv) registerUser(t *testing.T, username string) string {
	t.Helper()
	resp, result := e.do(t, "POST", "/api/auth/register", "", map[string]interface{}{
		"username": username,
		"email":    username + "@example.com",
		"password": "supersecret",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	return "Bearer " + data(result)["token"].(string)
}

func (e *testEnv) seedCourse(t *testing.T, lessons int) (string, []string) {
	t.Helper()
	resp, result := e.do(t, "POST", "/api/admin/courses", e.adminToken, map[string]interface{}{
		"title":      "Ethics",
		"short_desc": "Aristotle to Kant",
		"difficulty": "beginner",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	courseID := data(result)["id"].(string)

	ids := make([]string, 0, lessons)
	for i := 0; i < lessons; i++ {
		resp, result := e.do(t, "POST", "/api/admin/courses/"+courseID+"/lessons", e.adminToken, map[string]interface{}{
			"title": "Lesson",
		})
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
		ids = append(ids, data(result)["id"].(string))
	}
	return courseID, ids
}

func TestRegisterAndLogin(t *testing.T) {
	env := setupApp(t)
	env.registerUser(t, "socrates")

	resp, _ := env.do(t, "POST", "/api/auth/register", "", map[string]interface{}{
		"username": "socrates",
		"email":    "other@example.com",
		"password": "supersecret",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, result := env.do(t, "POST", "/api/auth/register", "", map[string]interface{}{
		"username": "x",
		"email":    "not-an-email",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, result["details"], "password")

	resp, result = env.do(t, "POST", "/api/auth/login", "", map[string]interface{}{
		"username": "socrates",
		"password": "supersecret",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, data(result)["token"])
	user := data(result)["user"].(map[string]interface{})
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "password_hash")

	resp, _ = env.do(t, "POST", "/api/auth/login", "", map[string]interface{}{
		"username": "socrates",
		"password": "wrong-password",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	token := "Bearer " + data(result)["token"].(string)
	resp, result = env.do(t, "GET", "/api/user/profile", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "socrates", data(result)["user"].(map[string]interface{})["username"])
	assert.Equal(t, float64(0), data(result)["progress"].(map[string]interface{})["courses_started"])
}

func TestAuthRequired(t *testing.T) {
	env := setupApp(t)

	resp, _ := env.do(t, "GET", "/api/progress", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, "GET", "/api/progress", "Bearer garbage", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := setupApp(t)
	token := env.registerUser(t, "plato")

	resp, _ := env.do(t, "POST", "/api/admin/courses", token, map[string]interface{}{"title": "Republic"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, "POST", "/api/admin/courses", env.adminToken, map[string]interface{}{"difficulty": "expert"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAdminRoleComesFromUserRow(t *testing.T) {
	env := setupApp(t)
	token := env.registerUser(t, "diogenes")

	claims, err := utils.ParseJWTToken(token, env.cfg)
	require.NoError(t, err)
	forged, err := utils.GenerateJWTToken(claims.UserID, models.RoleAdmin, env.cfg)
	require.NoError(t, err)

	resp, _ := env.do(t, "POST", "/api/admin/courses", "Bearer "+forged, map[string]interface{}{"title": "Cynicism"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	ghost, err := utils.GenerateJWTToken("no-such-user", models.RoleAdmin, env.cfg)
	require.NoError(t, err)
	resp, _ = env.do(t, "POST", "/api/admin/courses", "Bearer "+ghost, map[string]interface{}{"title": "Cynicism"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestLessonProgressFlow(t *testing.T) {
	env := setupApp(t)
	token := env.registerUser(t, "aristotle")
	courseID, lessons := env.seedCourse(t, 4)

	resp, _ := env.do(t, "GET", "/api/progress/courses/"+courseID, token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	// opening a course that was never started creates nothing
	resp, result := env.do(t, "POST", "/api/progress/courses/"+courseID+"/touch", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, data(result)["saved"])
	assert.Equal(t, "not_started", data(result)["state"])

	for i, lessonID := range lessons {
		resp, result = env.do(t, "POST", "/api/progress/courses/"+courseID+"/lessons/"+lessonID+"/complete", token, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, true, data(result)["saved"])
		assert.Equal(t, float64(25*(i+1)), data(result)["percent"])
	}
	assert.Equal(t, true, data(result)["completed"])
	assert.Equal(t, "completed", data(result)["state"])

	resp, result = env.do(t, "GET", "/api/progress/courses/"+courseID, token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", data(result)["state"])

	// a completed course stays at 100 when a lesson is repeated
	resp, result = env.do(t, "POST", "/api/progress/courses/"+courseID+"/lessons/"+lessons[0]+"/complete", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(100), data(result)["percent"])
	assert.Equal(t, "completed", data(result)["state"])

	resp, _ = env.do(t, "POST", "/api/progress/courses/"+courseID+"/lessons/nope/complete", token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, "POST", "/api/progress/courses/missing/lessons/"+lessons[0]+"/complete", token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, result = env.do(t, "GET", "/api/courses/"+courseID, token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", data(result)["state"])
}

func TestUpdateProgressClampsAndOverview(t *testing.T) {
	env := setupApp(t)
	token := env.registerUser(t, "kant")
	courseID, _ := env.seedCourse(t, 2)
	otherID, _ := env.seedCourse(t, 2)

	resp, result := env.do(t, "PUT", "/api/progress/courses/"+courseID, token, map[string]interface{}{"percent": 150})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, data(result)["saved"])
	assert.Equal(t, float64(100), data(result)["percent"])
	assert.Equal(t, true, data(result)["completed"])

	resp, result = env.do(t, "PUT", "/api/progress/courses/"+otherID, token, map[string]interface{}{"percent": 0})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "not_started", data(result)["state"])

	resp, result = env.do(t, "PUT", "/api/progress/courses/"+otherID, token, map[string]interface{}{"percent": 40})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(40), data(result)["percent"])

	resp, _ = env.do(t, "PUT", "/api/progress/courses/"+otherID, token, map[string]interface{}{})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp, result = env.do(t, "GET", "/api/progress/overview", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	ov := data(result)
	assert.Equal(t, float64(2), ov["courses_started"])
	assert.Equal(t, float64(1), ov["courses_completed"])
	assert.Equal(t, float64(70), ov["average_percent"])

	resp, result = env.do(t, "GET", "/api/progress", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	views := result["data"].([]interface{})
	require.Len(t, views, 2)
	first := views[0].(map[string]interface{})
	assert.Equal(t, otherID, first["progress"].(map[string]interface{})["course_id"])
	assert.Equal(t, "Ethics", first["course_details"].(map[string]interface{})["title"])

	resp, result = env.do(t, "GET", "/api/courses", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, result["data"], 2)
}

func TestExportProgress(t *testing.T) {
	env := setupApp(t)
	token := env.registerUser(t, "hume")
	courseID, _ := env.seedCourse(t, 1)

	resp, _ := env.do(t, "PUT", "/api/progress/courses/"+courseID, token, map[string]interface{}{"percent": 30})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, "GET", "/api/progress/export", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "progress.xlsx")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	// xlsx files are zip archives
	assert.True(t, bytes.HasPrefix(body, []byte("PK")))
}
