package contacts

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	nameRe  = regexp.MustCompile(`^[\p{L}\s\-']+$`)
	phoneRe = regexp.MustCompile(`^[\+\d][\d\s\-\(\)]{7,}$`)

	phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

const minPhoneDigits = 8

// ContactInput is the writable part of a contact, as submitted by a form,
// the REST API or an import row.
type ContactInput struct {
	FirstName   string     `json:"first_name"   validate:"required,max=100,personname"`
	LastName    string     `json:"last_name"    validate:"required,max=100,personname"`
	PhoneNumber string     `json:"phone_number" validate:"required,max=20,phone,phonedigits"`
	Email       string     `json:"email"        validate:"required,max=254,email"`
	City        string     `json:"city"         validate:"required,max=100"`
	StatusID    int64      `json:"status"       validate:"required,gt=0"`
	DateAdded   *time.Time `json:"date_added,omitempty"`
}

// ContactPatch is a partial update; nil fields keep their stored value.
type ContactPatch struct {
	FirstName   *string    `json:"first_name"`
	LastName    *string    `json:"last_name"`
	PhoneNumber *string    `json:"phone_number"`
	Email       *string    `json:"email"`
	City        *string    `json:"city"`
	StatusID    *int64     `json:"status"`
	DateAdded   *time.Time `json:"date_added"`
}

// Normalize trims every field, title-cases names and lowercases the email.
func (in *ContactInput) Normalize() {
	in.FirstName = titleCase(strings.TrimSpace(in.FirstName))
	in.LastName = titleCase(strings.TrimSpace(in.LastName))
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.City = strings.TrimSpace(in.City)
}

// apply overlays the non-nil patch fields onto in.
func (p ContactPatch) apply(in *ContactInput) {
	if p.FirstName != nil {
		in.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		in.LastName = *p.LastName
	}
	if p.PhoneNumber != nil {
		in.PhoneNumber = *p.PhoneNumber
	}
	if p.Email != nil {
		in.Email = *p.Email
	}
	if p.City != nil {
		in.City = *p.City
	}
	if p.StatusID != nil {
		in.StatusID = *p.StatusID
	}
	if p.DateAdded != nil {
		in.DateAdded = p.DateAdded
	}
}

// titleCase upper-cases the first letter of every word and lower-cases the
// rest, where any non-letter starts a new word ("o'neil" -> "O'Neil").
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r):
			prevLetter = false
		case prevLetter:
			r = unicode.ToLower(r)
		default:
			r = unicode.ToTitle(r)
			prevLetter = true
		}
		b.WriteRune(r)
	}
	return b.String()
}

func significantPhoneChars(phone string) int {
	return len([]rune(phoneSeparators.Replace(phone)))
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return nameRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phonedigits", func(fl validator.FieldLevel) bool {
		return significantPhoneChars(fl.Field().String()) >= minPhoneDigits
	})

	return v
}

// toValidationError converts validator output into field messages.
func toValidationError(err error) *ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewValidationError("non_field_errors", err.Error())
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		out.Add(fe.Field(), fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "gt":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "personname":
		return "Only letters, spaces, hyphens, and apostrophes allowed"
	case "phone":
		return "Enter a valid phone number (min. 8 characters, digits, spaces, +, -, (, ) allowed)"
	case "phonedigits":
		return "Phone number must have at least 8 digits."
	case "email":
		return "Enter a valid email address."
	default:
		return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
	}
}
