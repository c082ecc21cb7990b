package forms

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignupValid(t *testing.T) {
	f := ParseSignup(url.Values{
		"username":         {" Form Tester "},
		"email":            {"Form@Example.com"},
		"password":         {"pass1234"},
		"confirm_password": {"pass1234"},
	})
	assert.Equal(t, "Form Tester", f.Username)
	assert.Equal(t, "form@example.com", f.Email)
	assert.True(t, Validate(f).Valid())
}

func TestSignupErrors(t *testing.T) {
	f := ParseSignup(url.Values{
		"username":         {strings.Repeat("a", 251)},
		"email":            {"not-an-email"},
		"password":         {"one"},
		"confirm_password": {"two"},
	})
	errs := Validate(f)
	assert.Equal(t, "Must be at most 250 characters.", errs.Get("username"))
	assert.Equal(t, "Invalid email address.", errs.Get("email"))
	assert.Equal(t, "Passwords must match.", errs.Get("confirm_password"))
	assert.Empty(t, errs.Get("password"))
}

func TestLoginRequired(t *testing.T) {
	errs := Validate(ParseLogin(url.Values{}))
	assert.Equal(t, "This field is required.", errs.Get("email"))
	assert.Equal(t, "This field is required.", errs.Get("password"))

	assert.True(t, Validate(ParseLogin(url.Values{"email": {"f@example.com"}, "password": {"pw"}})).Valid())
}

func TestPostLimits(t *testing.T) {
	assert.True(t, Validate(ParsePost(url.Values{
		"title": {"Title"}, "subtitle": {"Sub"}, "body": {"Body"}, "img_url": {""},
	})).Valid())

	errs := Validate(ParsePost(url.Values{
		"title":    {"Title"},
		"subtitle": {""},
		"body":     {strings.Repeat("b", 1001)},
		"img_url":  {strings.Repeat("u", 501)},
	}))
	assert.Len(t, errs, 3)
	assert.Contains(t, errs, "subtitle")
	assert.Equal(t, "Must be at most 1000 characters.", errs.Get("body"))
	assert.Equal(t, "Must be at most 500 characters.", errs.Get("img_url"))
}

func TestCommentLength(t *testing.T) {
	assert.True(t, Validate(ParseComment(url.Values{"comment": {"Hi"}})).Valid())
	assert.Equal(t, "Must be at least 2 characters.", Validate(ParseComment(url.Values{"comment": {" x "}})).Get("comment"))
	assert.Contains(t, Validate(ParseComment(url.Values{"comment": {strings.Repeat("c", 1000)}})), "comment")
}

func TestContact(t *testing.T) {
	f := ParseContact(url.Values{"name": {"Ann"}, "email": {"ann@example.com"}, "phone": {"555"}, "message": {"hello"}})
	assert.True(t, Validate(f).Valid())
	assert.Contains(t, Validate(ParseContact(url.Values{"name": {"Ann"}})), "message")
}

func TestValidateNonStruct(t *testing.T) {
	assert.Contains(t, Validate("nope"), "_form")
}
