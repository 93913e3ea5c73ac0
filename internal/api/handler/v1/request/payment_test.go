package request

import (
	"strings"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInitiateRequest() InitiatePaymentRequest {
	return InitiatePaymentRequest{
		CandidateID: 7,
		EditionID:   3,
		CategoryID:  2,
		VotesCount:  5,
		Email:       "voter@example.com",
		Phone:       "90123456",
		Firstname:   "Ayaba",
		Lastname:    "Dossou",
	}
}

func TestInitiatePaymentRequest_Validate(t *testing.T) {
	t.Run("valid request", func(t *testing.T) {
		req := validInitiateRequest()

		assert.NoError(t, req.Validate("229", 8))
	})

	t.Run("fields are trimmed before validation", func(t *testing.T) {
		req := validInitiateRequest()
		req.Email = "  voter@example.com  "
		req.Firstname = " Ayaba "

		require.NoError(t, req.Validate("229", 8))
		assert.Equal(t, "voter@example.com", req.Email)
		assert.Equal(t, "Ayaba", req.Firstname)
	})

	t.Run("reports all failing fields at once", func(t *testing.T) {
		req := validInitiateRequest()
		req.Email = "not-an-email"
		req.Phone = "12"
		req.VotesCount = 0

		err := req.Validate("229", 8)
		require.Error(t, err)

		var fields validation.Errors
		require.ErrorAs(t, err, &fields)
		assert.Contains(t, fields, "email")
		assert.Contains(t, fields, "phone")
		assert.Contains(t, fields, "votes_count")
	})

	t.Run("votes count capped", func(t *testing.T) {
		req := validInitiateRequest()
		req.VotesCount = 1001

		assert.Error(t, req.Validate("229", 8))
	})

	t.Run("overlong names rejected", func(t *testing.T) {
		req := validInitiateRequest()
		req.Firstname = strings.Repeat("a", 51)

		assert.Error(t, req.Validate("229", 8))
	})

	t.Run("whitespace only name rejected", func(t *testing.T) {
		req := validInitiateRequest()
		req.Lastname = "   "

		assert.Error(t, req.Validate("229", 8))
	})
}

func TestCastVoteRequest_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := CastVoteRequest{CandidateID: 1, EditionID: 2, VotesCount: 3}

		assert.NoError(t, req.Validate())
	})

	t.Run("missing candidate", func(t *testing.T) {
		req := CastVoteRequest{EditionID: 2, VotesCount: 3}

		assert.Error(t, req.Validate())
	})

	t.Run("zero votes", func(t *testing.T) {
		req := CastVoteRequest{CandidateID: 1, EditionID: 2}

		assert.Error(t, req.Validate())
	})
}
