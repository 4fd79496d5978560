package controllers

import (
	"philosofium/backend/models"
	"philosofium/backend/progress"
	"philosofium/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type UserController struct {
	DB       *gorm.DB
	Progress *progress.Service
	Log      *utils.Logger
}

func NewUserController(db *gorm.DB, svc *progress.Service, log *utils.Logger) *UserController {
	return &UserController{DB: db, Progress: svc, Log: log.With("controller", "UserController")}
}

type profileResponse struct {
	User     *models.User             `json:"user"`
	Progress *models.ProgressOverview `json:"progress,omitempty"`
}

// GetProfile returns the caller's account with a progress summary. The
// summary is omitted when progress cannot be read.
func (uc *UserController) GetProfile(c *fiber.Ctx) error {
	userID := utils.UserIDFromCtx(c)

	var user models.User
	res := uc.DB.WithContext(c.UserContext()).Where("id = ?", userID).Limit(1).Find(&user)
	if res.Error != nil {
		uc.Log.Error("user lookup failed", "user_id", userID, "error", res.Error)
		return utils.InternalServerError(c, "Could not query database")
	}
	if res.RowsAffected == 0 {
		return utils.NotFound(c, "User not found")
	}

	resp := profileResponse{User: &user}
	ov, err := uc.Progress.Overview(c.UserContext(), userID)
	if err != nil {
		uc.Log.Warn("progress overview unavailable", "user_id", userID, "error", err)
	} else {
		resp.Progress = &ov
	}
	return utils.Success(c, fiber.StatusOK, resp)
}
