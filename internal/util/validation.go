package util

import (
	"github.com/go-playground/validator/v10"
)

var Validate = validator.New()

// ValidateStruct validates request-shaped inputs against their struct tags.
func ValidateStruct(s any) error {
	return Validate.Struct(s)
}
