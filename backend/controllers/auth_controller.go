package controllers

import (
	"strings"

	"philosofium/backend/config"
	"philosofium/backend/models"
	"philosofium/backend/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthController struct {
	DB  *gorm.DB
	Cfg *config.Config
	Log *utils.Logger
}

func NewAuthController(db *gorm.DB, cfg *config.Config, log *utils.Logger) *AuthController {
	return &AuthController{DB: db, Cfg: cfg, Log: log.With("controller", "AuthController")}
}

type RegisterInput struct {
	Username   string `json:"username" validate:"required,min=3,max=32"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
	Group      string `json:"group" validate:"max=64"`
	University string `json:"university" validate:"max=128"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates a user account and returns a token for it.
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var input RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if errs := utils.ValidateStruct(input); errs != nil {
		return utils.ValidationError(c, errs)
	}

	var existing models.User
	res := ac.DB.WithContext(c.UserContext()).
		Where("username = ? OR email = ?", input.Username, input.Email).
		Limit(1).
		Find(&existing)
	if res.Error != nil {
		ac.Log.Error("user lookup failed", "error", res.Error)
		return utils.InternalServerError(c, "Could not query database")
	}
	if res.RowsAffected > 0 {
		return utils.Error(c, fiber.StatusConflict, fiber.NewError(fiber.StatusConflict, "Username or email already taken"))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return utils.InternalServerError(c, "Could not hash password")
	}

	user := models.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
		Group:        input.Group,
		University:   input.University,
	}
	if err := ac.DB.WithContext(c.UserContext()).Create(&user).Error; err != nil {
		ac.Log.Error("could not create user", "username", user.Username, "error", err)
		return utils.InternalServerError(c, "Could not create user")
	}

	token, err := utils.GenerateJWTToken(user.ID, user.Role, ac.Cfg)
	if err != nil {
		return utils.InternalServerError(c, "Could not generate token")
	}

	ac.Log.Info("user registered", "user_id", user.ID)
	return utils.Created(c, authResponse{Token: token, User: &user})
}

// Login checks the credentials and returns a fresh token.
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var input LoginInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if errs := utils.ValidateStruct(input); errs != nil {
		return utils.ValidationError(c, errs)
	}

	var user models.User
	res := ac.DB.WithContext(c.UserContext()).
		Where("username = ?", strings.TrimSpace(input.Username)).
		Limit(1).
		Find(&user)
	if res.Error != nil {
		ac.Log.Error("user lookup failed", "error", res.Error)
		return utils.InternalServerError(c, "Could not query database")
	}
	if res.RowsAffected == 0 {
		return utils.Unauthorized(c, "Invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return utils.Unauthorized(c, "Invalid credentials")
	}

	token, err := utils.GenerateJWTToken(user.ID, user.Role, ac.Cfg)
	if err != nil {
		return utils.InternalServerError(c, "Could not generate token")
	}

	return utils.Success(c, fiber.StatusOK, authResponse{Token: token, User: &user})
}
