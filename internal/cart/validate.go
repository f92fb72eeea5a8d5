package cart

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nursingcollective/cartengine/pkg/enums"
	pkgerrors "github.com/nursingcollective/cartengine/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("product_type", func(fl validator.FieldLevel) bool {
		pt, ok := fl.Field().Interface().(enums.ProductType)
		return ok && pt.IsValid()
	})
	return v
}

func validateAddItem(input AddItemInput) error {
	details := map[string]string{}
	if err := validate.Struct(input); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item")
		}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
	}
	if input.Price.IsNegative() {
		details["price"] = "must not be negative"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid item").WithDetails(details)
	}
	return nil
}

func validateCheckout(input CheckoutInput, guest bool) error {
	details := map[string]string{}
	if err := validate.Struct(input); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid checkout request")
		}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
	}
	if guest && strings.TrimSpace(input.Email) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required for guest checkout").
			WithDetails(map[string]string{"email": "is required"})
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid checkout request").WithDetails(details)
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "url":
		return "must be a valid url"
	case "product_type":
		return "must be one of individual, lite-package, full-package"
	}
	return "is invalid"
}
