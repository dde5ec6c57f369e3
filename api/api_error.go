package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ApiError is the JSON body of every failed request
type ApiError struct {
	// Code is the HTTP status code
	Code int `json:"code"`
	// Message is the error message
	Message string `json:"message"`
}

// ApiErrorf aborts the request with code and a formatted message
func ApiErrorf(c *gin.Context, code int, format string, args ...interface{}) ApiError {
	ar := ApiError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
	c.AbortWithStatusJSON(code, ar)
	return ar
}

// ValidatorErrorToUser turns validation failures into a message safe to return to the caller
func ValidatorErrorToUser(errs validator.ValidationErrors) string {
	messages := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", fe.Field()))
		case "len":
			messages = append(messages, fmt.Sprintf("%s must be %s characters long", fe.Field(), fe.Param()))
		case "hexadecimal":
			messages = append(messages, fmt.Sprintf("%s must be hex encoded", fe.Field()))
		case "eq", "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("validation failed on field %s", fe.Field()))
		}
	}
	return strings.Join(messages, ". ")
}
