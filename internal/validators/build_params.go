// Package validators checks transaction build requests before they reach
// the gateway, so obviously invalid work is rejected without a round trip.
package validators

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/certiform/credential-gateway/internal/entities"
)

// BuildParamsValidator validates the type-specific parameters of a build
// request. Struct-level constraints come from validate tags; which fields
// are required is decided per transaction type.
type BuildParamsValidator struct {
	validate *validator.Validate
}

func NewBuildParamsValidator() *BuildParamsValidator {
	return &BuildParamsValidator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Validate reports the first problem found with the given type and params.
func (v *BuildParamsValidator) Validate(txType entities.TransactionType, params entities.BuildParams) error {
	if !txType.IsValid() {
		return fmt.Errorf("unsupported transaction type %q", txType)
	}

	if err := v.validate.Struct(params); err != nil {
		return fmt.Errorf("invalid build params: %w", err)
	}

	switch txType {
	case entities.TransactionTypeCreateCourse:
		if params.Title == "" {
			return fmt.Errorf("title is required for %s", txType)
		}
	case entities.TransactionTypeUpdateCourse:
		if params.CourseID == "" {
			return fmt.Errorf("course_id is required for %s", txType)
		}
	case entities.TransactionTypeCreateProject:
		if params.CourseID == "" {
			return fmt.Errorf("course_id is required for %s", txType)
		}
		if params.Title == "" {
			return fmt.Errorf("title is required for %s", txType)
		}
	case entities.TransactionTypeMintCredential, entities.TransactionTypeSponsoredMintCredential:
		if params.CredentialID == "" {
			return fmt.Errorf("credential_id is required for %s", txType)
		}
		if params.RecipientAddress == "" {
			return fmt.Errorf("recipient_address is required for %s", txType)
		}
	}

	return nil
}
