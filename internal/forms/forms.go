// Package forms parses and validates submitted HTML forms.
//
// Each form is a struct whose validate tags declare its constraints; Validate
// turns violations into one message per field, keyed by the form field name.
package forms

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Errors maps form field names to a message. An empty Errors means the form
// is valid.
type Errors map[string]string

func (e Errors) Valid() bool { return len(e) == 0 }

// Get returns the message for field, or "".
func (e Errors) Get(field string) string { return e[field] }

type Signup struct {
	Username        string `form:"username" validate:"required,max=250"`
	Email           string `form:"email" validate:"required,email"`
	Password        string `form:"password" validate:"required,max=50"`
	ConfirmPassword string `form:"confirm_password" validate:"required,max=50,eqfield=Password"`
}

type Login struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required,max=50"`
}

type Post struct {
	Title    string `form:"title" validate:"required,max=250"`
	Subtitle string `form:"subtitle" validate:"required,max=250"`
	Body     string `form:"body" validate:"required,max=1000"`
	ImgURL   string `form:"img_url" validate:"max=500"`
}

type Comment struct {
	Comment string `form:"comment" validate:"required,min=2,max=999"`
}

type Contact struct {
	Name    string `form:"name" validate:"required,max=250"`
	Email   string `form:"email" validate:"required,email"`
	Phone   string `form:"phone" validate:"max=50"`
	Message string `form:"message" validate:"required,max=5000"`
}

func ParseSignup(v url.Values) Signup {
	return Signup{
		Username:        field(v, "username"),
		Email:           email(v, "email"),
		Password:        v.Get("password"),
		ConfirmPassword: v.Get("confirm_password"),
	}
}

func ParseLogin(v url.Values) Login {
	return Login{Email: email(v, "email"), Password: v.Get("password")}
}

func ParsePost(v url.Values) Post {
	return Post{
		Title:    field(v, "title"),
		Subtitle: field(v, "subtitle"),
		Body:     strings.TrimSpace(v.Get("body")),
		ImgURL:   field(v, "img_url"),
	}
}

func ParseComment(v url.Values) Comment {
	return Comment{Comment: strings.TrimSpace(v.Get("comment"))}
}

func ParseContact(v url.Values) Contact {
	return Contact{
		Name:    field(v, "name"),
		Email:   email(v, "email"),
		Phone:   field(v, "phone"),
		Message: strings.TrimSpace(v.Get("message")),
	}
}

// Validate checks form against its declared constraints.
func Validate(form any) Errors {
	errs := Errors{}
	err := validate.Struct(form)
	if err == nil {
		return errs
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errs["_form"] = "The form could not be processed."
		return errs
	}
	for _, fe := range verrs {
		if _, seen := errs[fe.Field()]; seen {
			continue
		}
		errs[fe.Field()] = message(fe)
	}
	return errs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Must be at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s characters.", fe.Param())
	case "email":
		return "Invalid email address."
	case "eqfield":
		return "Passwords must match."
	}
	return "Invalid value."
}

func field(v url.Values, name string) string {
	return strings.TrimSpace(v.Get(name))
}

func email(v url.Values, name string) string {
	return strings.ToLower(strings.TrimSpace(v.Get(name)))
}
