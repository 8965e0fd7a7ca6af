package controller

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"emailforge/config"
	"emailforge/models"
	"emailforge/utils"
)

type AuthController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewAuthController(db *gorm.DB, logger *log.Logger) *AuthController {
	return &AuthController{
		DB:     db,
		Logger: logger,
	}
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"omitempty,max=100"`
	Company  string `json:"company" validate:"omitempty,max=200"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Register creates a new user account
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var existing models.User
	if err := ac.DB.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Email already registered", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to hash password", err)
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if req.Name != "" {
		user.Name = utils.Pointer(req.Name)
	}
	if req.Company != "" {
		user.Company = utils.Pointer(req.Company)
	}

	if err := ac.DB.Create(&user).Error; err != nil {
		utils.LogError(ac.Logger, err, "Failed to create user", log.Fields{"email": req.Email})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create user", err)
	}

	accessToken, refreshToken, err := utils.GenerateJWTToken(&user)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate tokens", err)
	}
	ac.storeRefreshToken(user.ID, refreshToken)

	utils.LogEvent(ac.Logger, "user_registered", log.Fields{"user_id": user.ID})

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"user":          user,
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	}))
}

// Login authenticates a user with email and password
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var user models.User
	if err := ac.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid credentials", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid credentials", nil)
	}

	if !user.IsActive {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Account is not active", nil)
	}

	accessToken, refreshToken, err := utils.GenerateJWTToken(&user)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate tokens", err)
	}
	ac.storeRefreshToken(user.ID, refreshToken)

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"user":          user,
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	}))
}

// Refresh exchanges a valid refresh token for a new token pair
func (ac *AuthController) Refresh(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var stored models.RefreshToken
	if err := ac.DB.Where("token = ? AND revoked = ?", req.RefreshToken, false).First(&stored).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid refresh token", nil)
	}
	if time.Now().After(stored.ExpiresAt) {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Refresh token expired", nil)
	}

	accessToken, refreshToken, err := utils.RefreshTokens(req.RefreshToken)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid refresh token", err)
	}

	// Rotate: revoke the old token, persist the new one
	ac.DB.Model(&stored).Update("revoked", true)
	ac.storeRefreshToken(stored.UserID, refreshToken)

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	}))
}

// Logout revokes the presented refresh token
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&req); err == nil && req.RefreshToken != "" {
		ac.DB.Model(&models.RefreshToken{}).
			Where("token = ?", req.RefreshToken).
			Update("revoked", true)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Logged out successfully",
	}))
}

// GetProfile returns the authenticated user's profile
func (ac *AuthController) GetProfile(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	return c.JSON(utils.SuccessResponse(user))
}

// UpdateProfile updates profile fields
func (ac *AuthController) UpdateProfile(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req struct {
		Name     *string `json:"name" validate:"omitempty,max=100"`
		Company  *string `json:"company" validate:"omitempty,max=200"`
		Timezone *string `json:"timezone" validate:"omitempty,max=50"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if req.Name != nil {
		user.Name = req.Name
	}
	if req.Company != nil {
		user.Company = req.Company
	}
	if req.Timezone != nil {
		user.Timezone = *req.Timezone
	}

	if err := ac.DB.Save(user).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update profile", err)
	}

	return c.JSON(utils.SuccessResponse(user))
}

// ChangePassword updates the user's password after verifying the current one
func (ac *AuthController) ChangePassword(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req struct {
		CurrentPassword string `json:"current_password" validate:"required"`
		NewPassword     string `json:"new_password" validate:"required,min=8"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Current password is incorrect", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to hash password", err)
	}

	if err := ac.DB.Model(user).Update("password_hash", string(hash)).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update password", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Password changed successfully",
	}))
}

func (ac *AuthController) googleOAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     config.AppConfig.Google.ClientID,
		ClientSecret: config.AppConfig.Google.ClientSecret,
		RedirectURL:  config.AppConfig.Google.RedirectURI,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// GoogleLogin redirects the browser to Google's consent screen
func (ac *AuthController) GoogleLogin(c *fiber.Ctx) error {
	if config.AppConfig.Google.ClientID == "" {
		return utils.ErrorResponse(c, fiber.StatusNotImplemented, "Google OAuth is not configured", nil)
	}

	url := ac.googleOAuthConfig().AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	return c.Redirect(url, fiber.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GoogleCallback exchanges the OAuth code, provisions the user if needed
// and issues a token pair
func (ac *AuthController) GoogleCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	if code == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Missing authorization code", nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	oauthConfig := ac.googleOAuthConfig()
	token, err := oauthConfig.Exchange(ctx, code)
	if err != nil {
		utils.LogError(ac.Logger, err, "Google OAuth exchange failed", nil)
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "OAuth exchange failed", err)
	}

	client := oauthConfig.Client(ctx, token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Failed to fetch Google profile", err)
	}
	defer resp.Body.Close()

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Failed to parse Google profile", err)
	}
	if info.Email == "" {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Google profile has no email", nil)
	}

	var user models.User
	err = ac.DB.Where("google_id = ?", info.ID).First(&user).Error
	if err == gorm.ErrRecordNotFound {
		err = ac.DB.Where("email = ?", info.Email).First(&user).Error
		if err == gorm.ErrRecordNotFound {
			user = models.User{
				Email:         info.Email,
				EmailVerified: true,
				IsActive:      true,
			}
			if info.Name != "" {
				user.Name = utils.Pointer(info.Name)
			}
			if err := ac.DB.Create(&user).Error; err != nil {
				return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create user", err)
			}
		} else if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch user", err)
		}

		// Link the Google identity to the local row
		user.GoogleID = utils.Pointer(info.ID)
		if info.Picture != "" {
			user.GoogleImageURL = utils.Pointer(info.Picture)
		}
		ac.DB.Save(&user)
	} else if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch user", err)
	}

	accessToken, refreshToken, err := utils.GenerateJWTToken(&user)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate tokens", err)
	}
	ac.storeRefreshToken(user.ID, refreshToken)

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"user":          user,
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	}))
}

func (ac *AuthController) storeRefreshToken(userID uint, token string) {
	rt := models.RefreshToken{
		UserID:    userID,
		Token:     token,
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	}
	if err := ac.DB.Create(&rt).Error; err != nil {
		ac.Logger.WithFields(log.Fields{"user_id": userID}).Warnf("Failed to store refresh token: %v", err)
	}
}
