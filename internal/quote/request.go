package quote

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/tour-quote/internal/pricing"
)

const dateLayout = "2006-01-02"

// Request is the caller-supplied part of a pricing snapshot. Settings, tax
// rules and the clock are attached by the Service.
type Request struct {
	LineItems []pricing.LineItem
	Trip      pricing.TripContext
	Pax       pricing.PaxDetails
	Currency  string
	Options   pricing.Options
}

type quoteRequest struct {
	LineItems []lineItemPayload `json:"lineItems" validate:"max=500,dive"`
	Trip      tripPayload       `json:"trip"`
	Pax       paxPayload        `json:"pax"`
	Currency  string            `json:"currency" validate:"omitempty,len=3,alpha"`
	Options   optionsPayload    `json:"options"`
}

type lineItemPayload struct {
	ID              string                   `json:"id" validate:"required,max=128"`
	Category        string                   `json:"category" validate:"required,oneof=transport hotel sightseeing restaurant insurance technology luxury shopping entertainment airport additional"`
	BasePrice       decimal.Decimal          `json:"basePrice" validate:"gte=0"`
	Currency        string                   `json:"currency" validate:"omitempty,len=3,alpha"`
	QuantityContext *pricing.QuantityContext `json:"quantityContext"`
	StaffPrice      *decimal.Decimal         `json:"staffPrice" validate:"omitempty,gte=0"`
}

type tripPayload struct {
	Country     string `json:"country" validate:"omitempty,max=64"`
	TravelStart string `json:"travelStart" validate:"omitempty,datetime=2006-01-02"`
	TravelEnd   string `json:"travelEnd" validate:"omitempty,datetime=2006-01-02"`
	TripDays    *int   `json:"tripDays" validate:"omitempty,gte=1,lte=366"`
}

type paxPayload struct {
	Adults   int `json:"adults" validate:"gte=0,lte=1000"`
	Children int `json:"children" validate:"gte=0,lte=1000"`
	Infants  int `json:"infants" validate:"gte=0,lte=1000"`
}

type optionsPayload struct {
	Dynamic              pricing.DynamicFlags `json:"dynamic"`
	SplitByPax           bool                 `json:"splitByPax"`
	ChildDiscountPercent decimal.Decimal      `json:"childDiscountPercent" validate:"gte=0,lte=100"`
	ServiceType          string               `json:"serviceType" validate:"omitempty,max=64"`
	TaxExempt            bool                 `json:"taxExempt"`
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// NewValidator returns a validator that understands decimal amounts and reports JSON field names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeRequest parses and validates a JSON quote request.
func DecodeRequest(data []byte, v *validator.Validate) (Request, []FieldError, error) {
	var payload quoteRequest
	if err := json.Unmarshal(data, &payload); err != nil {
		return Request{}, nil, fmt.Errorf("%w: malformed body: %v", pricing.ErrInvalidInput, err)
	}
	if v == nil {
		v = NewValidator()
	}
	if err := v.Struct(payload); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]FieldError, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, FieldError{Field: trimNamespace(fe.Namespace()), Rule: fe.Tag()})
			}
			return Request{}, fields, fmt.Errorf("%w: %d field(s) failed validation", pricing.ErrInvalidInput, len(fields))
		}
		return Request{}, nil, fmt.Errorf("%w: %v", pricing.ErrInvalidInput, err)
	}
	req, err := payload.toRequest()
	return req, nil, err
}

func (p quoteRequest) toRequest() (Request, error) {
	start, err := parseDate(p.Trip.TravelStart)
	if err != nil {
		return Request{}, err
	}
	end, err := parseDate(p.Trip.TravelEnd)
	if err != nil {
		return Request{}, err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return Request{}, fmt.Errorf("%w: travel end is before travel start", pricing.ErrInvalidInput)
	}
	items := make([]pricing.LineItem, 0, len(p.LineItems))
	for _, it := range p.LineItems {
		items = append(items, pricing.LineItem{
			ID:         strings.TrimSpace(it.ID),
			Category:   pricing.Category(it.Category),
			BasePrice:  it.BasePrice,
			Currency:   strings.ToUpper(strings.TrimSpace(it.Currency)),
			Quantity:   it.QuantityContext,
			StaffPrice: it.StaffPrice,
		})
	}
	tripDays := 0
	if p.Trip.TripDays != nil {
		tripDays = *p.Trip.TripDays
	}
	return Request{
		LineItems: items,
		Trip: pricing.TripContext{
			Country:     strings.TrimSpace(p.Trip.Country),
			TravelStart: start,
			TravelEnd:   end,
			TripDays:    tripDays,
		},
		Pax: pricing.PaxDetails{
			Adults:   p.Pax.Adults,
			Children: p.Pax.Children,
			Infants:  p.Pax.Infants,
		},
		Currency: strings.ToUpper(strings.TrimSpace(p.Currency)),
		Options: pricing.Options{
			Dynamic:              p.Options.Dynamic,
			SplitByPax:           p.Options.SplitByPax,
			ChildDiscountPercent: p.Options.ChildDiscountPercent,
			ServiceType:          strings.TrimSpace(p.Options.ServiceType),
			TaxExempt:            p.Options.TaxExempt,
		},
	}, nil
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", pricing.ErrInvalidInput, value)
	}
	return t, nil
}

// trimNamespace drops the root struct name from a validator namespace.
func trimNamespace(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
