package validation

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aussiebroadwan/edoras/internal/identity/domain"
)

// Input is an untrusted, JSON decoded request object.
type Input map[string]any

// Validator runs the schemas. It is safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator whose field errors are keyed by JSON name.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("weburl", isWebURL); err != nil {
		panic(fmt.Sprintf("validation: register weburl: %v", err))
	}

	return &Validator{v: v}
}

var webSchemes = map[string]bool{"http": true, "https": true, "ftp": true, "ftps": true}

// isWebURL accepts absolute http(s) and ftp(s) URLs with a host.
func isWebURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return webSchemes[strings.ToLower(u.Scheme)] && u.Host != ""
}

// NormalizeEmail trims and lower-cases an address. Stored emails and lookup
// keys always go through it.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// check runs struct rules over payload, adds failures to fields unless the
// decoder already reported that field, and returns the combined error.
func (v *Validator) check(payload any, fields map[string]string) error {
	err := v.v.Struct(payload)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if _, seen := fields[fe.Field()]; !seen {
				fields[fe.Field()] = message(fe)
			}
		}
	} else if err != nil {
		return err
	}

	if len(fields) > 0 {
		return domain.NewValidationError(fields)
	}
	return nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "weburl", "url":
		return "must be a valid URL"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

// reader pulls typed values out of an Input, recording type errors.
type reader struct {
	in     Input
	fields map[string]string
}

func newReader(in Input) *reader {
	return &reader{in: in, fields: map[string]string{}}
}

// str returns the string at key. Absent and null both read as "".
func (r *reader) str(key string) string {
	s, _ := r.optional(key)
	if s == nil {
		return ""
	}
	return *s
}

// optional reports whether key is present and its value. A present null or
// empty string yields a nil value.
func (r *reader) optional(key string) (*string, bool) {
	raw, ok := r.in[key]
	if !ok {
		return nil, false
	}
	if raw == nil {
		return nil, true
	}

	s, isString := raw.(string)
	if !isString {
		r.fields[key] = "must be a string"
		return nil, true
	}
	if s == "" {
		return nil, true
	}
	return &s, true
}
