// Package validate checks request payloads against struct tags and cleans free-form input.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
)

// FieldErrors maps a JSON field name to a human readable problem.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+fe[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var (
	instance   = newValidator()
	serialExpr = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	mustRegister(v, "password", func(fl validator.FieldLevel) bool {
		return Password(fl.Field().String())
	})
	mustRegister(v, "resource_type", oneOf(domain.ResourceEquipment, domain.ResourceVehicle, domain.ResourceDevice, domain.ResourceFacility, domain.ResourceOther))
	mustRegister(v, "resource_status", oneOf(domain.StatusAvailable, domain.StatusInUse, domain.StatusMaintenance, domain.StatusRetired))
	mustRegister(v, "severity", oneOf(domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh, domain.SeverityCritical))
	mustRegister(v, "role", oneOf(domain.RoleAdmin, domain.RoleManager, domain.RoleEmployee))
	mustRegister(v, "theme", oneOf("light", "dark", "system"))
	mustRegister(v, "serial", func(fl validator.FieldLevel) bool {
		return serialExpr.MatchString(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

func oneOf(values ...string) validator.Func {
	allowed := make(map[string]struct{}, len(values))
	for _, v := range values {
		allowed[v] = struct{}{}
	}
	return func(fl validator.FieldLevel) bool {
		_, ok := allowed[fl.Field().String()]
		return ok
	}
}

// Struct validates v using its `validate` tags. Rule violations come back as FieldErrors.
func Struct(v any) error {
	err := instance.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if _, exists := out[name]; exists {
			continue
		}
		out[name] = message(fe)
	}
	return out
}

// Var validates a single value against a tag expression such as "required,email".
func Var(field string, value any, tag string) error {
	err := instance.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	return FieldErrors{field: message(verrs[0])}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "uuid", "uuid4":
		return "must be a valid id"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "password":
		return fmt.Sprintf("must be at least 8 characters, at most %d bytes, and include upper and lower case letters, a digit and a symbol", MaxPasswordBytes)
	case "resource_type":
		return "must be one of: equipment vehicle device facility other"
	case "resource_status":
		return "must be one of: available in_use maintenance retired"
	case "severity":
		return "must be one of: low medium high critical"
	case "role":
		return "must be one of: admin manager employee"
	case "theme":
		return "must be one of: light dark system"
	case "serial":
		return "may only contain letters, digits and dashes"
	default:
		return "is invalid"
	}
}

// MaxPasswordBytes is the longest password bcrypt hashes without truncation.
const MaxPasswordBytes = 72

// Password reports whether pw meets the password policy.
func Password(pw string) bool {
	if len(pw) < 8 || len(pw) > MaxPasswordBytes {
		return false
	}
	var upper, lower, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}
