package handler

import (
	"sync"

	"quadrant/backend/internal/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding rules used by request DTOs.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("account_type", func(fl validator.FieldLevel) bool {
			switch models.AccountType(fl.Field().String()) {
			case models.AccountTypeUser, models.AccountTypeBot:
				return true
			}
			return false
		})
	})
}
