package utils

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GenerateRateLimitKey creates a unique key for rate limiting
func GenerateRateLimitKey(userID uint, resourceID, path string) string {
	return fmt.Sprintf("rl:%d:%s:%s", userID, resourceID, path)
}

// ValidateMXRecords checks if an address's domain has valid MX records
func ValidateMXRecords(email string) (bool, error) {
	parts := strings.Split(email, "@")
	if len(parts) < 2 {
		return false, fmt.Errorf("invalid email format")
	}

	domain := parts[1]
	mxRecords, err := net.LookupMX(domain)
	if err != nil {
		return false, err
	}

	return len(mxRecords) > 0, nil
}

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}

// Round1 rounds a rate to one decimal place
func Round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

// ErrorResponse creates a standardized error response
func ErrorResponse(c *fiber.Ctx, status int, message string, err error) error {
	response := fiber.Map{
		"success": false,
		"error":   message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	return c.Status(status).JSON(response)
}

// SuccessResponse creates a standardized success response
func SuccessResponse(data interface{}) fiber.Map {
	return fiber.Map{
		"success": true,
		"data":    data,
	}
}

// ParseUint safely parses a string to uint
func ParseUint(s string) uint {
	i, _ := strconv.ParseUint(s, 10, 32)
	return uint(i)
}

// PaginatedResponse structure for paginated results
type PaginatedResponse struct {
	Data  interface{} `json:"data"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}
