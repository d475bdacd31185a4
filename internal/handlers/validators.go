package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"touris/api/internal/security"
)

const (
	passwordSpecials = "@$!%*?&"
	minPasswordBytes = 8
)

var registerOnce sync.Once

func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("strongpassword", strongPassword)
	})
}

// strongPassword wants 8 to 72 bytes with a lower and upper case ASCII
// letter, a digit and one of @$!%*?&.
func strongPassword(fl validator.FieldLevel) bool {
	return IsStrongPassword(fl.Field().String())
}

// IsStrongPassword only admits ASCII letters, digits and the listed specials.
func IsStrongPassword(password string) bool {
	if len(password) < minPasswordBytes || len(password) > security.MaxPasswordBytes {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		default:
			return false
		}
	}
	return lower && upper && digit && special
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// bind decodes the JSON body and writes a 400 listing the failed fields.
func bind(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fail(c, http.StatusBadRequest, codeValidation, "Invalid request body")
		return false
	}

	details := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "Validation failed",
		"code":    codeValidation,
		"details": details,
	})
	return false
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "strongpassword":
		return fmt.Sprintf("must be %d to %d characters with upper and lower case letters, a number and one of %s",
			minPasswordBytes, security.MaxPasswordBytes, passwordSpecials)
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return "is invalid"
}
