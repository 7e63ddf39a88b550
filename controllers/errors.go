package controllers

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"storefront-service/services"
)

// respondError renders a ServiceError as {"error", "code", "field"}.
func respondError(c *gin.Context, err *services.ServiceError) {
	body := gin.H{"error": err.Message, "code": err.Kind}
	if err.Reason != "" {
		body["reason"] = err.Reason
	}
	if err.Field != "" {
		body["field"] = err.Field
	}
	c.AbortWithStatusJSON(err.StatusCode, body)
}

// bindError maps a JSON decoding failure to a validation error naming the
// offending field when the decoder reports one.
func bindError(err error) *services.ServiceError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return services.NewInvalidFieldError(typeErr.Field, "Invalid value for field: "+typeErr.Field)
	}
	if errors.Is(err, io.EOF) {
		return services.NewInvalidFieldError("body", "Request body is required")
	}
	return services.NewInvalidFieldError("body", "Invalid request body: "+err.Error())
}
