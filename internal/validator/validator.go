package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// DateLayout is the ISO calendar date format accepted for dates of birth.
const DateLayout = "2006-01-02"

var (
	phonePattern      = regexp.MustCompile(`^(0\d{9,14}|\+\d{10,15})$`)
	personNamePattern = regexp.MustCompile(`^[\p{L}][\p{L} '\-]*$`)
)

var (
	once  sync.Once
	trans ut.Translator
)

// Setup registers JSON field names, custom tags and English translations on
// Gin's binding engine. Safe to call more than once.
func Setup() {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*govalidator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation("phone", validatePhone)
		_ = v.RegisterValidation("personname", validatePersonName)
		_ = v.RegisterValidation("pastdate", validatePastDate)

		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		registerMessage(v, "phone", "{0} must be a valid phone number")
		registerMessage(v, "personname", "{0} may only contain letters, spaces, hyphens and apostrophes")
		registerMessage(v, "pastdate", "{0} must be a date in YYYY-MM-DD format that is not in the future")
	})
}

func registerMessage(v *govalidator.Validate, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe govalidator.FieldError) string {
			msg, _ := t.T(tag, fe.Field())
			return msg
		},
	)
}

func validatePhone(fl govalidator.FieldLevel) bool {
	return phonePattern.MatchString(fl.Field().String())
}

func validatePersonName(fl govalidator.FieldLevel) bool {
	return personNamePattern.MatchString(strings.TrimSpace(fl.Field().String()))
}

func validatePastDate(fl govalidator.FieldLevel) bool {
	d, err := time.Parse(DateLayout, fl.Field().String())
	if err != nil {
		return false
	}
	return !d.After(time.Now().UTC())
}

// TranslateErrors takes a binding/validation error and returns a map of
// field name to human-readable error message. If the error is not a
// validation error, it returns a single-key map with "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			if trans != nil {
				fields[fe.Field()] = fe.Translate(trans)
			} else {
				fields[fe.Field()] = fe.Error()
			}
		}
		return fields
	}

	fields["detail"] = err.Error()
	return fields
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}

// Struct validates v with the same engine and rules handlers bind with.
// Services call it so their invariants hold regardless of the caller.
func Struct(v interface{}) map[string]string {
	Setup()
	if err := binding.Validator.ValidateStruct(v); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
