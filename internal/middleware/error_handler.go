package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// CustomErrorHandler creates a custom error handler for Echo. Every error
// leaves as a consistent JSON body; nothing is silently swallowed.
func CustomErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	message := "Something went wrong. Please try again later."

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if msg, ok := he.Message.(string); ok && msg != "" {
			message = msg
		} else {
			switch code {
			case http.StatusNotFound:
				message = "The resource you're looking for doesn't exist."
			case http.StatusForbidden:
				message = "You don't have permission to access this resource."
			case http.StatusUnauthorized:
				message = "Please authenticate to continue."
			case http.StatusBadRequest:
				message = "The request could not be processed."
			}
		}
	}

	// Log the error
	c.Logger().Error(err)

	if c.Response().Committed {
		return
	}

	if writeErr := c.JSON(code, map[string]interface{}{
		"error":   http.StatusText(code),
		"message": message,
	}); writeErr != nil {
		c.Logger().Error(writeErr)
	}
}
