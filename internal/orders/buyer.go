package orders

import (
	"strings"

	pkgerrors "github.com/angelmondragon/zerymnor-storefront/pkg/errors"
	"github.com/angelmondragon/zerymnor-storefront/pkg/validation"
	"github.com/go-playground/validator/v10"
)

var validate = validation.New()

// Buyer is the billing form. Card fields are checked for shape and are
// never stored or forwarded.
type Buyer struct {
	Name       string `json:"name" validate:"required,max=200"`
	Email      string `json:"email" validate:"required,email,max=254"`
	Address    string `json:"address" validate:"required,max=500"`
	CardNumber string `json:"card_number" validate:"required,number,min=13,max=19"`
	CardExpiry string `json:"card_expiry" validate:"required,datetime=01/06"`
	CardCVV    string `json:"card_cvv" validate:"required,number,min=3,max=4"`
}

// Normalize trims whitespace and strips spaces and dashes from the card number.
func (b Buyer) Normalize() Buyer {
	b.Name = strings.TrimSpace(b.Name)
	b.Email = strings.TrimSpace(b.Email)
	b.Address = strings.TrimSpace(b.Address)
	b.CardNumber = strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(b.CardNumber))
	b.CardExpiry = strings.TrimSpace(b.CardExpiry)
	b.CardCVV = strings.TrimSpace(b.CardCVV)
	return b
}

// Validate returns a VALIDATION_ERROR with per-field details.
func (b Buyer) Validate() error {
	err := validate.Struct(b)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid buyer")
	}
	details := map[string]string{}
	for _, fe := range errs {
		details[fe.Field()] = fieldMessage(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid buyer").WithDetails(details)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "number":
		return "must contain only digits"
	case "datetime":
		return "must be MM/YY"
	case "min":
		return "is too short"
	case "max":
		return "is too long"
	}
	return "is invalid"
}
