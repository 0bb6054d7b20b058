package approval

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/brokerage/commission/internal/domain"
)

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// submission holds the fields a transaction must carry before it leaves
// draft.
type submission struct {
	AgentID         string `json:"agent_id" validate:"required"`
	PropertyAddress string `json:"property_address" validate:"required"`
	ClientName      string `json:"client_name" validate:"required"`
	MarketType      string `json:"market_type" validate:"required,oneof=primary secondary"`
	TransactionType string `json:"transaction_type" validate:"required,oneof=sale lease"`
	CommissionType  string `json:"commission_type" validate:"required,oneof=percentage fixed"`
}

// ValidateForSubmission checks mandatory fields and market rules. Primary
// market transactions may only be sales.
func ValidateForSubmission(tx *domain.Transaction) error {
	s := submission{
		AgentID:         tx.AgentID,
		PropertyAddress: strings.TrimSpace(tx.PropertyAddress),
		ClientName:      strings.TrimSpace(tx.ClientName),
		MarketType:      string(tx.MarketType),
		TransactionType: string(tx.TransactionType),
		CommissionType:  string(tx.CommissionType),
	}
	if err := validate.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &domain.ValidationError{Field: fe.Field(), Reason: describeTag(fe)}
		}
		return &domain.ValidationError{Reason: err.Error()}
	}

	if !tx.CommissionAmount.IsPositive() {
		return &domain.ValidationError{Field: "commission_amount", Reason: "must be greater than zero"}
	}
	if tx.MarketType == domain.MarketPrimary && tx.TransactionType != domain.TransactionSale {
		return &domain.ValidationError{Field: "transaction_type", Reason: "primary market transactions must be sales"}
	}
	return nil
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
