package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dukerupert/checkout/internal/address"
	"github.com/go-playground/validator/v10"
)

// DeliveryInput is the raw shipping information supplied by a caller.
// It is also the persisted form of DeliveryDetails.
type DeliveryInput struct {
	Address      string `json:"address" validate:"required,min=5,max=200"`
	City         string `json:"city" validate:"required,min=2,max=100"`
	PostalCode   string `json:"postal_code" validate:"required"`
	Phone        string `json:"phone" validate:"required"`
	Country      string `json:"country" validate:"required,len=2"`
	Instructions string `json:"instructions,omitempty" validate:"omitempty,max=500"`
}

// DeliveryDetails is validated shipping information. The zero value is not
// valid; build one with NewDeliveryDetails. Values are immutable and compare
// structurally with ==.
type DeliveryDetails struct {
	address      string
	city         string
	postalCode   string
	phone        string
	country      string
	instructions string
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		in := sl.Current().Interface().(DeliveryInput)
		if in.Country == "" {
			return
		}
		region := address.Region(in.Country)
		if !address.Supported(region) {
			sl.ReportError(in.Country, "country", "Country", "region", "")
			return
		}
		if in.PostalCode != "" && !address.ValidPostalCode(region, in.PostalCode) {
			sl.ReportError(in.PostalCode, "postal_code", "PostalCode", "postal_code", in.Country)
		}
		if in.Phone != "" && !address.ValidPhone(region, in.Phone) {
			sl.ReportError(in.Phone, "phone", "Phone", "phone", in.Country)
		}
	}, DeliveryInput{})

	return v
}

// NewDeliveryDetails validates in and returns the resulting value object.
// Surrounding whitespace is trimmed before validation. On failure it returns
// a delivery_details_invalid error listing every offending field.
func NewDeliveryDetails(in DeliveryInput) (DeliveryDetails, error) {
	const op = "delivery.new"

	in = DeliveryInput{
		Address:      strings.TrimSpace(in.Address),
		City:         strings.TrimSpace(in.City),
		PostalCode:   strings.ToUpper(strings.TrimSpace(in.PostalCode)),
		Phone:        strings.TrimSpace(in.Phone),
		Country:      strings.ToUpper(strings.TrimSpace(in.Country)),
		Instructions: strings.TrimSpace(in.Instructions),
	}

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return DeliveryDetails{}, Internal(err, op, "failed to validate delivery details")
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			if _, seen := fields[fe.Field()]; !seen {
				fields[fe.Field()] = fieldMessage(fe)
			}
		}
		return DeliveryDetails{}, DeliveryDetailsInvalid(op, fields)
	}

	return DeliveryDetails{
		address:      in.Address,
		city:         in.City,
		postalCode:   in.PostalCode,
		phone:        address.NormalizePhone(in.Phone),
		country:      in.Country,
		instructions: in.Instructions,
	}, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "region":
		return "is not a supported delivery region"
	case "postal_code":
		return fmt.Sprintf("is not a valid postal code for %s", fe.Param())
	case "phone":
		return fmt.Sprintf("is not a valid phone number for %s", fe.Param())
	default:
		return "is invalid"
	}
}

func (d DeliveryDetails) Address() string      { return d.address }
func (d DeliveryDetails) City() string         { return d.city }
func (d DeliveryDetails) PostalCode() string   { return d.postalCode }
func (d DeliveryDetails) Phone() string        { return d.phone }
func (d DeliveryDetails) Country() string      { return d.country }
func (d DeliveryDetails) Instructions() string { return d.instructions }

// IsZero reports whether d was never constructed.
func (d DeliveryDetails) IsZero() bool {
	return d == DeliveryDetails{}
}

// Equal reports structural equality.
func (d DeliveryDetails) Equal(other DeliveryDetails) bool {
	return d == other
}

// Input returns the persisted form of d.
func (d DeliveryDetails) Input() DeliveryInput {
	return DeliveryInput{
		Address:      d.address,
		City:         d.city,
		PostalCode:   d.postalCode,
		Phone:        d.phone,
		Country:      d.country,
		Instructions: d.instructions,
	}
}
