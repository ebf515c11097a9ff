package handlers

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/opsdeck/pkg/errors"
	"github.com/charlesng35/opsdeck/pkg/response"
	appValidator "github.com/charlesng35/opsdeck/pkg/validator"
)

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// When validation fails, an error response is automatically written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		if ve, ok := err.(appValidator.ValidationErrors); ok {
			response.Error(c, appErrors.NewValidation(ve.Fields()))
			return false
		}
		response.Error(c, appErrors.NewBadRequest("invalid request payload"))
		return false
	}

	return true
}
