package middleware

import (
	"philosofium/backend/config"
	"philosofium/backend/models"
	"philosofium/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AuthMiddleware verifies the bearer token and stores the caller's id in
// the request locals.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := utils.ParseJWTToken(c.Get(fiber.HeaderAuthorization), cfg)
		if err != nil {
			return utils.Unauthorized(c, "Unauthorized")
		}
		c.Locals(utils.LocalUserID, claims.UserID)
		return c.Next()
	}
}

// AdminMiddleware must run after AuthMiddleware. The role is read from the
// user row, so a revoked admin loses access before the token expires.
func AdminMiddleware(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := utils.UserIDFromCtx(c)
		if userID == "" {
			return utils.Unauthorized(c, "Unauthorized")
		}

		var user models.User
		res := db.WithContext(c.UserContext()).Where("id = ?", userID).Limit(1).Find(&user)
		if res.Error != nil {
			return utils.InternalServerError(c, "Could not query database")
		}
		if res.RowsAffected == 0 {
			return utils.Unauthorized(c, "Unauthorized")
		}
		if !user.IsAdmin() {
			return utils.Forbidden(c, "Forbidden - Admin access required")
		}
		return c.Next()
	}
}
