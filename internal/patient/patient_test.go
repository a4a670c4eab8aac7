package patient

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesikahq/luxe-portal/internal/contact"
)

func TestPatient_UnmarshalAge(t *testing.T) {
	tests := []struct {
		name string
		json string
		want *int
	}{
		{"number", `{"age": 42}`, intPtr(42)},
		{"string", `{"age": "7"}`, intPtr(7)},
		{"empty string", `{"age": ""}`, nil},
		{"null", `{"age": null}`, nil},
		{"whole float", `{"age": 42.0}`, intPtr(42)},
		{"bounds", `{"age": 150}`, intPtr(150)},
		{"fraction", `{"age": "42.9"}`, nil},
		{"negative", `{"age": -1}`, nil},
		{"too old", `{"age": 151}`, nil},
		{"huge", `{"age": 1e300}`, nil},
		{"nan", `{"age": "NaN"}`, nil},
		{"inf", `{"age": "+Inf"}`, nil},
		{"missing", `{}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Patient
			require.NoError(t, json.Unmarshal([]byte(tt.json), &p))
			assert.Equal(t, tt.want, p.Age)
		})
	}

	var p Patient
	assert.Error(t, json.Unmarshal([]byte(`{"age":"old"}`), &p))
}

func TestPatient_UnmarshalKeepsOtherFields(t *testing.T) {
	var p Patient
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"abc","firstName":"Ada","contactNo":"+11234567890","age":30}`), &p))
	assert.Equal(t, "abc", p.ID)
	assert.Equal(t, "Ada", p.FirstName)
	assert.Equal(t, "+11234567890", p.ContactNo)
}

func TestPatient_MarshalOmitsEmptyAge(t *testing.T) {
	raw, err := json.Marshal(&Patient{FirstName: "Ada", ContactNo: "+11234567890"})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "age")
	assert.NotContains(t, string(raw), "_id")
	assert.Contains(t, string(raw), `"contactNo":"+11234567890"`)
}

func TestDecodeList(t *testing.T) {
	list, err := decodeList(json.RawMessage(`[{"_id":"1"},{"_id":"2"}]`))
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = decodeList(json.RawMessage(`{"data":[{"_id":"1"}]}`))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "1", list[0].ID)

	list, err = decodeList(json.RawMessage(`{"patients":[{"_id":"9"}]}`))
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = decodeList(nil)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = decodeList(json.RawMessage(`"nope"`))
	assert.Error(t, err)
}

func TestFullAddress(t *testing.T) {
	p := &Patient{AddressLine1: "1 Main St", City: "Springfield", State: "IL", Zipcode: "62701"}
	assert.Equal(t, "1 Main St, Springfield, IL 62701", p.FullAddress())
	assert.Equal(t, "", (&Patient{}).FullAddress())
}

func TestFormValidator_Domestic(t *testing.T) {
	v := NewFormValidator(contact.Domestic)

	f := &Form{FirstName: " Ada ", LastName: "Lovelace", ContactNo: "(123) 456-7890", Age: "36"}
	assert.Empty(t, v.Validate(f))
	assert.Equal(t, "Ada", f.FirstName)

	errs := v.Validate(&Form{ContactNo: "123-456-78"})
	assert.Equal(t, "First name is required", errs["firstName"])
	assert.Equal(t, "Last name is required", errs["lastName"])
	assert.Equal(t, "Format should be (123) 456-7890", errs["contactNo"])

	errs = v.Validate(&Form{FirstName: "a", LastName: "b"})
	assert.Equal(t, "Contact number is required", errs["contactNo"])
}

func TestFormValidator_International(t *testing.T) {
	v := NewFormValidator(contact.International)

	assert.Empty(t, v.Validate(&Form{FirstName: "a", LastName: "b", ContactNo: "+12345678901"}))

	errs := v.Validate(&Form{FirstName: "a", LastName: "b", ContactNo: "1234567890"})
	assert.Equal(t, "Include country code, e.g. +1234567890", errs["contactNo"])
}

func TestFormValidator_OptionalFields(t *testing.T) {
	v := NewFormValidator(contact.Domestic)
	base := func() *Form {
		return &Form{FirstName: "a", LastName: "b", ContactNo: "1234567890"}
	}

	for _, tt := range []struct {
		name  string
		edit  func(*Form)
		field string
	}{
		{"age negative", func(f *Form) { f.Age = "-1" }, "age"},
		{"age too old", func(f *Form) { f.Age = "151" }, "age"},
		{"age text", func(f *Form) { f.Age = "ten" }, "age"},
		{"zip short", func(f *Form) { f.Zipcode = "1234" }, "zipcode"},
		{"zip letters", func(f *Form) { f.Zipcode = "ABCDE" }, "zipcode"},
		{"start date", func(f *Form) { f.StartDate = "03/14/2026" }, "startDate"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			f := base()
			tt.edit(f)
			errs := v.Validate(f)
			assert.Contains(t, errs, tt.field)
			assert.Len(t, errs, 1)
		})
	}

	f := base()
	f.Age, f.Zipcode, f.StartDate = "150", "12345-6789", "2026-03-14"
	assert.Empty(t, v.Validate(f))
}

func TestForm_ToPatient(t *testing.T) {
	f := &Form{FirstName: "Ada", LastName: "L", Age: "36", ContactNo: "(123) 456-7890"}
	p := f.ToPatient(contact.Domestic)
	assert.Equal(t, "+11234567890", p.ContactNo)
	require.NotNil(t, p.Age)
	assert.Equal(t, 36, *p.Age)

	f.Age = ""
	assert.Nil(t, f.ToPatient(contact.Domestic).Age)

	f.ContactNo = "+442079460958"
	assert.Equal(t, "+442079460958", f.ToPatient(contact.International).ContactNo)
}

func TestFormFromPatient(t *testing.T) {
	p := &Patient{
		FirstName: "Ada",
		Age:       intPtr(36),
		ContactNo: "+11234567890",
		StartDate: "2026-03-14T00:00:00.000Z",
	}
	f := FormFromPatient(p, contact.Domestic)
	assert.Equal(t, "(123) 456-7890", f.ContactNo)
	assert.Equal(t, "36", f.Age)
	assert.Equal(t, "2026-03-14", f.StartDate)

	f = FormFromPatient(p, contact.International)
	assert.Equal(t, "+11234567890", f.ContactNo)
}

func TestForm_RoundTripThroughWire(t *testing.T) {
	f := &Form{FirstName: "a", LastName: "b", ContactNo: "1234567890"}
	v := NewFormValidator(contact.Domestic)
	require.Empty(t, v.Validate(f))

	back := FormFromPatient(f.ToPatient(contact.Domestic), contact.Domestic)
	assert.Equal(t, "(123) 456-7890", back.ContactNo)
	assert.Empty(t, v.Validate(back))
}

func intPtr(i int) *int { return &i }
