package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SKUs are uppercase alphanumeric segments joined by hyphens, e.g.
// WIDGET-001.
var skuPattern = regexp.MustCompile(`^[A-Z0-9]+(-[A-Z0-9]+)*$`)

// RegisterCustomValidations installs the domain validation tags on gin's
// binding engine. Call once at startup before serving requests.
func RegisterCustomValidations() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("sku", validSKU)
}

func validSKU(fl validator.FieldLevel) bool {
	return skuPattern.MatchString(fl.Field().String())
}
