package render

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	svcvalidate "github.com/nkiryanov/gizmocoin/internal/service/validate"
)

func configureValidator(validate *validator.Validate) {
	_ = validate.RegisterValidation("identity", validateIdentity)
	validate.RegisterTagNameFunc(useJSONTagNames)
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

// Same rules ledger applies, so malformed identity is reported as field error
func validateIdentity(fl validator.FieldLevel) bool {
	return svcvalidate.Identity(fl.Field().String()) == nil
}
