package report

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// DefaultPeriod pre-fills the suggestion form.
const DefaultPeriod = "Mar/2024"

var validate = validator.New()

// SuggestionInput is the savings form submission.
type SuggestionInput struct {
	Total  int    `json:"total" validate:"min=1"`
	Period string `json:"period" validate:"required"`
}

// Suggestion returns the savings message for in.
func Suggestion(in SuggestionInput) (string, error) {
	if err := validate.Struct(in); err != nil {
		return "", fmt.Errorf("invalid suggestion input: %w", err)
	}
	return fmt.Sprintf("Sugestões para %s com %d kWh consumidos.", in.Period, in.Total), nil
}
