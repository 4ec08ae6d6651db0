package collectors

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their descriptor key, e.g. copy_paths[2].
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	must("plugin_name", func(fl validator.FieldLevel) bool {
		n := fl.Field().String()
		return nameRegex.MatchString(n) && !reservedNames[n]
	})
	must("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	must("abspath", func(fl validator.FieldLevel) bool {
		return filepath.IsAbs(fl.Field().String())
	})
	must("pathpattern", func(fl validator.FieldLevel) bool {
		p := fl.Field().String()
		if !HasGlob(p) {
			return true
		}
		_, err := filepath.Match(p, "")
		return err == nil
	})
	return v
}

// validateConfig runs the struct tags on cfg and reports the first violation
// as a *ConfigError.
func validateConfig(cfg PluginConfig) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ConfigError{Plugin: cfg.Name, Field: "plugin", Reason: err.Error()}
	}

	e := verrs[0]
	field, index, _ := strings.Cut(e.Field(), "[")
	index = strings.TrimSuffix(index, "]")
	return &ConfigError{Plugin: cfg.Name, Field: field, Reason: formatValidationMessage(e, index)}
}

func formatValidationMessage(e validator.FieldError, index string) string {
	value := fmt.Sprint(e.Value())
	switch e.Tag() {
	case "required":
		return "must not be empty"
	case "plugin_name":
		if reservedNames[value] {
			return fmt.Sprintf("%q is reserved for case directory entries", value)
		}
		return "must match " + nameRegex.String()
	case "nonblank":
		return "entry " + index + " is empty"
	case "abspath":
		return "path " + value + " is not absolute"
	case "pathpattern":
		_, err := filepath.Match(value, "")
		return fmt.Sprintf("bad pattern %s: %v", value, err)
	default:
		return fmt.Sprintf("failed %s validation", e.Tag())
	}
}
