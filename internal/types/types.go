package types

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Placeholder is shown for any text field the alert did not carry.
const Placeholder = "N/A"

// UnknownType is the signal kind used when the alert has no type.
const UnknownType = "unknown"

// Text is an optional alert field that may arrive as a JSON string,
// number or boolean. Numbers keep their literal form.
type Text struct {
	Value string
	Set   bool
}

// UnmarshalJSON accepts a string, number, boolean or null.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = Text{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text{Value: s, Set: true}
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*t = Text{Value: n.String(), Set: true}
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*t = Text{Value: "True", Set: true}
		} else {
			*t = Text{Value: "False", Set: true}
		}
		return nil
	}

	return errors.Errorf("expected string or number, got %s", data)
}

// Or returns the value, or fallback when the field was absent or null.
func (t Text) Or(fallback string) string {
	if !t.Set {
		return fallback
	}
	return t.Value
}

// AlertPayload is the JSON body a charting platform posts to the webhook.
// Every field is optional.
type AlertPayload struct {
	Type      Text                `json:"type"`
	Symbol    Text                `json:"symbol"`
	Timeframe Text                `json:"timeframe"`
	Price     Text                `json:"price"`
	FastMA    decimal.NullDecimal `json:"fastMA"`
	SlowMA    decimal.NullDecimal `json:"slowMA"`
}

// MovingAverages is only present when the alert carried both values.
type MovingAverages struct {
	Fast decimal.Decimal
	Slow decimal.Decimal
}

// Alert is an AlertPayload with every default resolved.
type Alert struct {
	Type           string
	Symbol         string
	Timeframe      string
	Price          string
	MovingAverages *MovingAverages
}

// ParseAlert decodes a single JSON object from r. Anything other than an
// object (including an empty body) is rejected.
func ParseAlert(r io.Reader) (AlertPayload, error) {
	var raw json.RawMessage
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return AlertPayload{}, errors.New("empty request body")
		}
		return AlertPayload{}, errors.Wrap(err, "decode json")
	}
	if len(raw) == 0 || raw[0] != '{' {
		return AlertPayload{}, errors.New("request body is not a JSON object")
	}

	var p AlertPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return AlertPayload{}, errors.Wrap(err, "decode alert fields")
	}
	if err := checkMovingAverage("fastMA", p.FastMA); err != nil {
		return AlertPayload{}, err
	}
	if err := checkMovingAverage("slowMA", p.SlowMA); err != nil {
		return AlertPayload{}, err
	}
	return p, nil
}

const (
	// formatting cost grows with |exponent|
	maxMovingAverageExponent = 30
	maxMovingAverageDigits   = 40
)

func checkMovingAverage(field string, v decimal.NullDecimal) error {
	if !v.Valid {
		return nil
	}
	exp := v.Decimal.Exponent()
	if exp > maxMovingAverageExponent || exp < -maxMovingAverageExponent {
		return errors.Errorf("%s out of range: exponent %d", field, exp)
	}
	if v.Decimal.NumDigits() > maxMovingAverageDigits {
		return errors.Errorf("%s has too many digits", field)
	}
	return nil
}

// Normalize applies the defaults for every missing field.
func (p AlertPayload) Normalize() Alert {
	a := Alert{
		Type:      p.Type.Or(UnknownType),
		Symbol:    p.Symbol.Or(Placeholder),
		Timeframe: p.Timeframe.Or(Placeholder),
		Price:     p.Price.Or(Placeholder),
	}
	if p.FastMA.Valid && p.SlowMA.Valid {
		a.MovingAverages = &MovingAverages{
			Fast: p.FastMA.Decimal,
			Slow: p.SlowMA.Decimal,
		}
	}
	return a
}
