package patient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Patient is a record as the remote API stores it. The API owns every field;
// the portal only shapes what the user typed before sending it.
type Patient struct {
	ID           string `json:"_id,omitempty"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Age          *int   `json:"age,omitempty"`
	ContactNo    string `json:"contactNo"`
	Address      string `json:"address,omitempty"`
	AddressLine1 string `json:"addressLine1,omitempty"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Zipcode      string `json:"zipcode,omitempty"`
	StartDate    string `json:"startDate,omitempty"`
}

// UnmarshalJSON accepts age as a number, a numeric string or nothing, since
// older records were saved straight from a text input.
func (p *Patient) UnmarshalJSON(data []byte) error {
	type alias Patient
	aux := struct {
		*alias
		Age json.RawMessage `json:"age"`
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	age, err := parseAge(aux.Age)
	if err != nil {
		return err
	}
	p.Age = age
	return nil
}

func parseAge(raw json.RawMessage) (*int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, err
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid age %q", text)
	}
	// Ages the portal cannot show or edit are treated as unknown.
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < MinAge || f > MaxAge {
		return nil, nil
	}
	age := int(f)
	return &age, nil
}

// FullAddress joins whichever address parts are set.
func (p *Patient) FullAddress() string {
	parts := make([]string, 0, 5)
	for _, s := range []string{p.Address, p.AddressLine1, p.AddressLine2, p.City} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	stateZip := strings.TrimSpace(strings.TrimSpace(p.State) + " " + strings.TrimSpace(p.Zipcode))
	if stateZip != "" {
		parts = append(parts, stateZip)
	}
	return strings.Join(parts, ", ")
}

// decodeList reads either a bare array or an envelope with a data field.
func decodeList(raw json.RawMessage) ([]Patient, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var patients []Patient
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &patients); err != nil {
			return nil, err
		}
		return patients, nil
	}

	var envelope struct {
		Data     []Patient `json:"data"`
		Patients []Patient `json:"patients"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}
	return envelope.Patients, nil
}
