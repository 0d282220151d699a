package api

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"castingai/internal/apierr"
)

// requestValidator wraps go-playground/validator with JSON-tag field names
// in error messages, grounded on 2lar-b2/backend's singleton
// validation.Validator (RegisterTagNameFunc + sync.Once construction).
type requestValidator struct {
	validate *validator.Validate
}

var (
	validatorInstance *requestValidator
	validatorOnce     sync.Once
)

func getValidator() *requestValidator {
	validatorOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		validatorInstance = &requestValidator{validate: v}
	})
	return validatorInstance
}

// Struct validates req, returning an apierr.Validation error naming the
// first failing field when validation fails.
func (rv *requestValidator) Struct(req any) error {
	if err := rv.validate.Struct(req); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return apierr.New(apierr.Validation, fe.Field()+" failed "+fe.Tag())
		}
		return apierr.Wrap(apierr.Validation, "request validation failed", err)
	}
	return nil
}
