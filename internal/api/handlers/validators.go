package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/eventviewer/server/internal/apperr"
	"github.com/eventviewer/server/internal/domain/events"
	"github.com/eventviewer/server/internal/domain/users"
	"github.com/go-playground/validator/v10"
)

// validate checks request structs. Field names in errors use the json tag.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("campusemail", func(fl validator.FieldLevel) bool {
		return users.AllowedEmailDomain(fl.Field().String())
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(events.TimeLayout, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(events.DateLayout, fl.Field().String())
		return err == nil
	})
	return v
}

// validateStruct returns the first failed rule as a field-scoped validation error.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation("", "Invalid request.").Wrap(err)
	}
	fe := verrs[0]
	return apperr.Validation(fe.Field(), fieldMessage(fe))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "campusemail":
		return field + " domain must be " + strings.Join(users.AllowedEmailDomains, " or ")
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	case "eqfield":
		return field + " does not match"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "numeric":
		return field + " must contain digits only"
	case "hhmm":
		return field + " must use the HH:MM format"
	case "ymd":
		return field + " must use the YYYY-MM-DD format"
	case "hexadecimal":
		return field + " is malformed"
	default:
		return field + " is invalid"
	}
}
