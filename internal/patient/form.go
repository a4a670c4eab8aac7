package patient

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mesikahq/luxe-portal/internal/contact"
)

const (
	MinAge = 0
	MaxAge = 150
)

var zipcodePattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// Form is the add/edit patient form exactly as the user typed it.
type Form struct {
	FirstName    string `form:"firstName" validate:"required,max=100"`
	LastName     string `form:"lastName" validate:"required,max=100"`
	Age          string `form:"age" validate:"omitempty,age"`
	ContactNo    string `form:"contactNo"`
	Address      string `form:"address" validate:"max=200"`
	AddressLine1 string `form:"addressLine1" validate:"max=200"`
	AddressLine2 string `form:"addressLine2" validate:"max=200"`
	City         string `form:"city" validate:"max=100"`
	State        string `form:"state" validate:"max=100"`
	Zipcode      string `form:"zipcode" validate:"omitempty,zipcode"`
	StartDate    string `form:"startDate" validate:"omitempty,datetime=2006-01-02"`
}

var fieldLabels = map[string]string{
	"firstName":    "First name",
	"lastName":     "Last name",
	"address":      "Address",
	"addressLine1": "Address line 1",
	"addressLine2": "Address line 2",
	"city":         "City",
	"state":        "State",
}

// FormValidator checks patient forms. The contact number is checked with the
// deployment's contact rule set; everything else with struct tags.
type FormValidator struct {
	validate *validator.Validate
	rules    contact.RuleSet
}

func NewFormValidator(rules contact.RuleSet) *FormValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	_ = v.RegisterValidation("age", func(fl validator.FieldLevel) bool {
		_, ok := parseFormAge(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("zipcode", func(fl validator.FieldLevel) bool {
		return zipcodePattern.MatchString(fl.Field().String())
	})

	return &FormValidator{validate: v, rules: rules}
}

func (v *FormValidator) Rules() contact.RuleSet {
	return v.rules
}

// Validate trims f in place and returns a message per failing field. An
// empty map means the form can be submitted.
func (v *FormValidator) Validate(f *Form) map[string]string {
	f.trim()
	errs := make(map[string]string)

	if err := v.validate.Struct(f); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				errs[fe.Field()] = message(fe)
			}
		}
	}

	if res := v.rules.Validate(f.ContactNo); !res.Valid() {
		errs["contactNo"] = res.Message
	}
	return errs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fieldLabels[fe.Field()] + " is required"
	case "max":
		return fieldLabels[fe.Field()] + " must be at most " + fe.Param() + " characters"
	case "age":
		return "Age must be a whole number between 0 and 150"
	case "zipcode":
		return "Enter a 5 digit ZIP code, e.g. 12345 or 12345-6789"
	case "datetime":
		return "Start date must be a date (YYYY-MM-DD)"
	default:
		return "Invalid value"
	}
}

func (f *Form) trim() {
	for _, s := range []*string{
		&f.FirstName, &f.LastName, &f.Age, &f.ContactNo, &f.Address, &f.AddressLine1,
		&f.AddressLine2, &f.City, &f.State, &f.Zipcode, &f.StartDate,
	} {
		*s = strings.TrimSpace(*s)
	}
}

func parseFormAge(s string) (int, bool) {
	age, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || age < MinAge || age > MaxAge {
		return 0, false
	}
	return age, true
}

// ToPatient converts a validated form into the record sent to the API, with
// the contact number in wire form.
func (f *Form) ToPatient(rules contact.RuleSet) *Patient {
	p := &Patient{
		FirstName:    f.FirstName,
		LastName:     f.LastName,
		ContactNo:    rules.ToWireFormat(f.ContactNo),
		Address:      f.Address,
		AddressLine1: f.AddressLine1,
		AddressLine2: f.AddressLine2,
		City:         f.City,
		State:        f.State,
		Zipcode:      f.Zipcode,
		StartDate:    f.StartDate,
	}
	if age, ok := parseFormAge(f.Age); ok {
		p.Age = &age
	}
	return p
}

// FormFromPatient fills the edit form from a fetched record.
func FormFromPatient(p *Patient, rules contact.RuleSet) *Form {
	f := &Form{
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		ContactNo:    rules.FromWireFormat(p.ContactNo),
		Address:      p.Address,
		AddressLine1: p.AddressLine1,
		AddressLine2: p.AddressLine2,
		City:         p.City,
		State:        p.State,
		Zipcode:      p.Zipcode,
		StartDate:    p.StartDate,
	}
	if p.Age != nil {
		f.Age = strconv.Itoa(*p.Age)
	}
	if len(f.StartDate) > 10 {
		f.StartDate = f.StartDate[:10]
	}
	return f
}
