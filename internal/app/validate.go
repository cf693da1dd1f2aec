package app

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"

	"rental_kernel/internal/domain"
)

// Validator checks mutation payloads before anything is sent.
type Validator struct {
	v *validator.Validate
}

func NewValidator(phoneRegion string) *Validator {
	if phoneRegion == "" {
		phoneRegion = "TH"
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	mustRegister(v, "phone", func(fl validator.FieldLevel) bool {
		num, err := libphonenumber.Parse(fl.Field().String(), phoneRegion)
		return err == nil && libphonenumber.IsValidNumber(num)
	})
	mustRegister(v, "date", func(fl validator.FieldLevel) bool {
		_, ok := domain.ParseDate(fl.Field().String())
		return ok
	})
	return &Validator{v: v}
}

// mustRegister panics: tags are constants, so a failure is a programming error.
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// Struct returns a *domain.ValidationError naming each failed field.
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		fields := make(map[string]string, len(ves))
		for _, fe := range ves {
			fields[fe.Field()] = fe.Tag()
		}
		return &domain.ValidationError{Fields: fields}
	}
	return err
}
