package catalog

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"Tunora/core/apperr"
	"Tunora/core/genre"
	"Tunora/model"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// validatorInstance returns the shared validator with the catalog tags
// registered: "genre" (canonical genre) and "releasekind".
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("genre", func(fl validator.FieldLevel) bool {
			return genre.Canonical(fl.Field().String())
		})
		_ = v.RegisterValidation("releasekind", func(fl validator.FieldLevel) bool {
			kind := fl.Field().String()
			for _, k := range model.ReleaseKinds() {
				if string(k) == kind {
					return true
				}
			}
			return false
		})
		validate = v
	})
	return validate
}

// validateStruct runs the struct tags and folds failures into one
// InvalidInput error.
func validateStruct(s interface{}) error {
	err := validatorInstance().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Wrap(apperr.InvalidInput, "invalid request", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperr.New(apperr.InvalidInput, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "genre":
		return fmt.Sprintf("%s must be one of %v", field, genre.All())
	case "releasekind":
		return fmt.Sprintf("%s must be one of %v", field, model.ReleaseKinds())
	case "min":
		return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
