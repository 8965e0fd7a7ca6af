package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"emailforge/models"
	"emailforge/utils"
)

// Protected authenticates requests with a verified JWT. The token is
// read from the Authorization header or the access_token cookie. When
// the subject has no local row yet but the token carries an email
// claim, a user row is provisioned on first sight.
func Protected(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var token string
		authHeader := c.Get("Authorization")
		if authHeader != "" {
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid authorization format",
				})
			}
			token = tokenParts[1]
		} else {
			token = c.Cookies("access_token")
			if token == "" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Authorization required",
				})
			}
		}

		claims, err := utils.ParseJWTToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		var user models.User
		err = db.Where("id = ?", claims.Subject).First(&user).Error
		if err == gorm.ErrRecordNotFound && claims.Email != "" {
			// First request from an identity we have not seen yet
			err = db.Where("email = ?", claims.Email).First(&user).Error
			if err == gorm.ErrRecordNotFound {
				user = models.User{Email: claims.Email, IsActive: true}
				err = db.Create(&user).Error
			}
		}
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "User not found",
			})
		}

		if !user.IsActive {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Account is not active",
			})
		}

		c.Locals("user", &user)
		c.Locals("userID", user.ID)

		return c.Next()
	}
}
