package middleware

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/wms-platform/stock-redistribution/pkg/errors"
)

var validateOnce sync.Once

var (
	skuRegex         = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{2,49}$`)
	warehouseIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)
	dateRegex        = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// InitValidator registers the custom tags on gin's validator engine
func InitValidator() {
	validateOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("sku", validateSKU)
		_ = v.RegisterValidation("warehouse_id", validateWarehouseID)
		_ = v.RegisterValidation("iso_date", validateISODate)

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
}

func validateSKU(fl validator.FieldLevel) bool {
	return skuRegex.MatchString(fl.Field().String())
}

// ValidSKU reports whether s is a well-formed SKU
func ValidSKU(s string) bool {
	return skuRegex.MatchString(s)
}

func validateWarehouseID(fl validator.FieldLevel) bool {
	return warehouseIDRegex.MatchString(fl.Field().String())
}

func validateISODate(fl validator.FieldLevel) bool {
	return dateRegex.MatchString(fl.Field().String())
}

// BindingError converts a ShouldBindJSON error into a validation AppError with per-field details
func BindingError(err error) *errors.AppError {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.ErrBadRequest("invalid request body").Wrap(err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			fields[fe.Field()] = fmt.Sprintf("failed on '%s=%s'", fe.Tag(), fe.Param())
		} else {
			fields[fe.Field()] = fmt.Sprintf("failed on '%s'", fe.Tag())
		}
	}
	return errors.ErrValidationWithFields("request validation failed", fields)
}
