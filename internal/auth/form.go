package auth

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	msgEmail    = "Enter a valid email address"
	msgPassword = "Password must be at least 6 characters"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// LoginForm is posted by the login page. The API calls the email "username".
type LoginForm struct {
	Username string `form:"username" validate:"required,loginemail"`
	Password string `form:"password" validate:"required,min=6"`
}

var loginValidator = newLoginValidator()

func newLoginValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	_ = v.RegisterValidation("loginemail", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate returns a message per failing field; both fields are always
// checked so the page can show every problem at once.
func (f *LoginForm) Validate() map[string]string {
	f.Username = strings.TrimSpace(f.Username)

	errs := make(map[string]string)
	err := loginValidator.Struct(f)
	if err == nil {
		return errs
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errs
	}
	for _, fe := range verrs {
		switch fe.Field() {
		case "username":
			errs["username"] = msgEmail
		case "password":
			errs["password"] = msgPassword
		}
	}
	return errs
}
