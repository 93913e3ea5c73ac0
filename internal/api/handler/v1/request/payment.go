package request

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

type InitiatePaymentRequest struct {
	CandidateID uint   `json:"candidate_id"`
	EditionID   uint   `json:"edition_id"`
	CategoryID  uint   `json:"category_id,omitempty"`
	VotesCount  int    `json:"votes_count"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Firstname   string `json:"firstname"`
	Lastname    string `json:"lastname"`
}

// Normalize trims string fields before validation so length caps apply to
// the meaningful content. Truncation never happens silently; over-long
// fields fail validation instead.
func (req *InitiatePaymentRequest) Normalize() {
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Firstname = strings.TrimSpace(req.Firstname)
	req.Lastname = strings.TrimSpace(req.Lastname)
}

// Validate reports every failing field at once; the returned error is an
// ozzo validation.Errors map of field name to message.
func (req *InitiatePaymentRequest) Validate(phoneCountryCode string, phoneLocalDigits int) error {
	req.Normalize()

	return validation.ValidateStruct(
		req,
		validation.Field(&req.CandidateID, validation.Required, validation.Min(uint(1))),
		validation.Field(&req.EditionID, validation.Required, validation.Min(uint(1))),
		validation.Field(&req.CategoryID, validation.Min(uint(1)).Error("must be a positive integer when provided")),
		validation.Field(&req.VotesCount, validation.Required, validation.Min(1), validation.Max(maxVotesPerRequest)),
		validation.Field(&req.Email, validation.Required, validation.Length(3, 100), is.Email),
		validation.Field(&req.Phone, validation.Required, validation.By(func(value interface{}) error {
			phone, _ := value.(string)
			_, err := NormalizePhone(phone, phoneCountryCode, phoneLocalDigits)
			return err
		})),
		validation.Field(&req.Firstname, validation.Required, validation.Length(1, 50)),
		validation.Field(&req.Lastname, validation.Required, validation.Length(1, 50)),
	)
}
