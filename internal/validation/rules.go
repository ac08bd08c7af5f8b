// Package validation holds the jellydator/validation rules shared by the
// HTTP DTOs, the CLI and the stock domain.
package validation

import (
	"strings"
	"unicode"

	validation "github.com/jellydator/validation"

	apperrors "github.com/almacen/catalog/internal/errors"
)

// MaxTitleNameLength matches the titles.name column.
const MaxTitleNameLength = 255

// MaxEventIDLength matches the processed_events.event_id column.
const MaxEventIDLength = 64

// WrapValidationError turns a validation failure into apperrors.ErrInvalidInput.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NoWhitespace rejects leading or trailing whitespace.
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank rejects strings made only of whitespace.
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// Token accepts printable strings without any whitespace, as used for event ids.
var Token = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.IndexFunc(s, func(r rune) bool {
			return unicode.IsSpace(r) || !unicode.IsPrint(r)
		}) == -1
	},
	validation.NewError("validation_token", "must not contain whitespace or control characters"),
)

// TitleName is the rule set for a title's display name.
func TitleName() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		NotBlank,
		NoWhitespace,
		validation.RuneLength(1, MaxTitleNameLength),
	}
}

// EventID is the rule set for an inbound event id.
func EventID() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		Token,
		validation.Length(1, MaxEventIDLength),
	}
}
