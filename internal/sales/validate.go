package sales

import (
	"fmt"
	"reflect"
	"strings"

	pkgerrors "github.com/angelmondragon/packfinderz-pos/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
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
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("decimal_gte0", decimalCheck(func(d decimal.Decimal) bool { return !d.IsNegative() }))
	_ = v.RegisterValidation("decimal_gt0", decimalCheck(func(d decimal.Decimal) bool { return d.IsPositive() }))
	return v
}

func decimalCheck(ok func(decimal.Decimal) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		return ok(d)
	}
}

// Validate checks field rules and that the money adds up.
func (s Sale) Validate() error {
	if err := validate.Struct(s); err != nil {
		return formatValidationErrors(err)
	}

	details := map[string]string{}
	lineSum := decimal.Zero
	for i, line := range s.Lines {
		expected := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Sub(line.Discount)
		if !expected.Equal(line.LineTotal) {
			details[fmt.Sprintf("lines[%d].line_total", i)] = fmt.Sprintf("must equal %s", expected.StringFixed(2))
		}
		lineSum = lineSum.Add(line.LineTotal)
	}
	if !lineSum.Equal(s.Subtotal) {
		details["subtotal"] = fmt.Sprintf("must equal sum of line totals %s", lineSum.StringFixed(2))
	}
	if total := s.Subtotal.Add(s.Tax); !total.Equal(s.Total) {
		details["total"] = fmt.Sprintf("must equal subtotal plus tax %s", total.StringFixed(2))
	}
	if s.Tendered().LessThan(s.Total) {
		details["payments"] = "must cover the total"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "sale totals do not reconcile").WithDetails(details)
	}
	return nil
}

func formatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldPath(fieldErr)] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case "decimal_gte0":
		return "must be a non-negative amount"
	case "decimal_gt0":
		return "must be a positive amount"
	}
	return "is invalid"
}
