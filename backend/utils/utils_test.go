package utils

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"philosofium/backend/config"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{JWTSecret: "testsecret", JWTTTL: time.Hour}
}

func TestJWTRoundTrip(t *testing.T) {
	cfg := testConfig()

	token, err := GenerateJWTToken("user-1", "admin", cfg)
	require.NoError(t, err)

	claims, err := ParseJWTToken("Bearer "+token, cfg)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}

func TestParseJWTTokenRejectsForeignSecret(t *testing.T) {
	token, err := GenerateJWTToken("user-1", "user", &config.Config{JWTSecret: "other"})
	require.NoError(t, err)

	_, err = ParseJWTToken(token, testConfig())
	assert.Error(t, err)
}

func TestParseJWTTokenRejectsEmpty(t *testing.T) {
	_, err := ParseJWTToken("", testConfig())
	assert.Error(t, err)
}

func TestValidateStruct(t *testing.T) {
	type input struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}

	assert.Nil(t, ValidateStruct(input{Email: "a@b.co", Password: "longenough"}))

	errs := ValidateStruct(input{Email: "nope"})
	require.Len(t, errs, 2)
	assert.Contains(t, errs, "email")
	assert.Equal(t, "this field is required", errs["password"])
}

func TestInitDBSQLite(t *testing.T) {
	db, err := InitDB(&config.Config{DBDriver: "sqlite", DBPath: ":memory:"})
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable("courses"))
	assert.True(t, db.Migrator().HasTable("lessons"))
	assert.True(t, db.Migrator().HasTable("users"))
}

func TestResponseEnvelopes(t *testing.T) {
	app := fiber.New()
	app.Get("/ok", func(c *fiber.Ctx) error { return Created(c, fiber.Map{"id": "c1"}) })
	app.Get("/missing", func(c *fiber.Ctx) error { return NotFound(c, "course not found") })
	app.Get("/invalid", func(c *fiber.Ctx) error {
		return ValidationError(c, map[string]string{"title": "title is required"})
	})

	cases := []struct {
		path    string
		status  int
		success bool
		check   func(t *testing.T, body map[string]interface{})
	}{
		{"/ok", fiber.StatusCreated, true, func(t *testing.T, body map[string]interface{}) {
			assert.Equal(t, "c1", body["data"].(map[string]interface{})["id"])
		}},
		{"/missing", fiber.StatusNotFound, false, func(t *testing.T, body map[string]interface{}) {
			assert.Equal(t, "Not Found", body["error"])
			assert.Equal(t, "course not found", body["message"])
		}},
		{"/invalid", fiber.StatusUnprocessableEntity, false, func(t *testing.T, body map[string]interface{}) {
			assert.Equal(t, "title is required", body["details"].(map[string]interface{})["title"])
		}},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tc.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)

			raw, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(raw, &body))
			assert.Equal(t, tc.success, body["success"])
			tc.check(t, body)
		})
	}
}
