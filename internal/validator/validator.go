// Package validator owns the validation engine shared by Gin's request
// binding and the API client. Rules are declared with `binding` struct tags
// and failures are reported by JSON field name with English messages.
package validator

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"repaytrack/internal/models"
)

var (
	once     sync.Once
	validate *validator.Validate
	trans    ut.Translator
)

// Engine returns the shared validator, creating it on first use.
func Engine() *validator.Validate {
	once.Do(setup)
	return validate
}

func setup() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.SetTagName("binding")
	validate.RegisterTagNameFunc(jsonFieldName)

	english := en.New()
	trans, _ = ut.New(english, english).GetTranslator("en")
	_ = entranslations.RegisterDefaultTranslations(validate, trans)

	_ = validate.RegisterValidation("isodate", validateISODate)
	_ = validate.RegisterTranslation("isodate", trans,
		func(ut ut.Translator) error {
			return ut.Add("isodate", "{0} must be a valid date in YYYY-MM-DD format", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T("isodate", fe.Field())
			return msg
		},
	)
}

func translator() ut.Translator {
	once.Do(setup)
	return trans
}

// Register installs the shared validator as Gin's binding validator so
// ShouldBindJSON applies the same rules and messages as Struct.
func Register() {
	binding.Validator = &ginValidator{}
}

// RegisterStructRule adds a struct-level rule for types. Violations are
// reported under tag and translated with message, where {0} is the field
// and {1} the rule parameter.
func RegisterStructRule(fn validator.StructLevelFunc, tag, message string, types ...interface{}) {
	v := Engine()
	v.RegisterStructValidation(fn, types...)
	_ = v.RegisterTranslation(tag, translator(),
		func(ut ut.Translator) error {
			return ut.Add(tag, message, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}

// Struct validates v against its `binding` tags.
func Struct(v interface{}) error {
	return Engine().Struct(v)
}

// Describe turns a binding or validation error into the offending JSON
// field (empty when unknown) and a message fit for API clients. Only the
// first violation is reported.
func Describe(err error) (field, message string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fe.Field(), fe.Translate(translator())
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if i := strings.LastIndex(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if field == "" {
			return "", "Request body has an invalid type"
		}
		return field, field + " must be " + jsonKind(typeErr.Type)
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return "", "Request body is not valid JSON"
	}

	if errors.Is(err, io.EOF) {
		return "", "Request body is required"
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return "", "Request body is not valid JSON"
	}

	return "", "Invalid request"
}

func jsonKind(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return "a boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.String:
		return "a string"
	case reflect.Slice, reflect.Array:
		return "an array"
	default:
		return "an object"
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

func validateISODate(fl validator.FieldLevel) bool {
	_, err := models.ParseDate(fl.Field().String())
	return err == nil
}

// ginValidator adapts the shared engine to binding.StructValidator.
type ginValidator struct{}

func (ginValidator) ValidateStruct(obj interface{}) error {
	if obj == nil {
		return nil
	}
	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	return Engine().Struct(v.Interface())
}

func (ginValidator) Engine() interface{} {
	return Engine()
}
