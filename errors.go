package insurance

import "fmt"

// InsuranceError is the tagged error shape surfaced on the HTTP boundary:
// a stable machine-readable code plus a human-readable message.
type InsuranceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *InsuranceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Verification failure codes, in the order verify checks them.
const (
	ErrCodeInvalidStructure        = "invalid_structure"
	ErrCodeMissingProgramReference = "missing_program_reference"
	ErrCodeInvalidData             = "invalid_data"
	ErrCodeNotSigned               = "not_signed"
	ErrCodeInsufficientBond        = "insufficient_bond"
)

// Settlement failure codes.
const (
	ErrCodeNotSignedByClient    = "not_signed_by_client"
	ErrCodeNoFeePayerConfigured = "no_fee_payer_configured"
	ErrCodeSettlementFailed     = "settlement_failed"
)

// NewInsuranceError creates a tagged error.
func NewInsuranceError(code, message string, details map[string]interface{}) *InsuranceError {
	return &InsuranceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}
