package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/hold"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/pricing"
)

// CustomValidator はEcho用のカスタムバリデーター
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator は新しいバリデーターを作成する
func NewValidator() *CustomValidator {
	v := validator.New()
	_ = v.RegisterValidation("hold_reason", func(fl validator.FieldLevel) bool {
		return hold.Reason(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("promo_type", func(fl validator.FieldLevel) bool {
		switch pricing.PromoType(fl.Field().String()) {
		case pricing.PromoPercentage, pricing.PromoFixed:
			return true
		}
		return false
	})
	return &CustomValidator{validator: v}
}

// Validate はリクエストのバリデーションを実行する
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
