package answer

import (
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// refusalPhrases are the formulations the model uses, under the prompt's
// refusal instruction, when the context lacks the answer. Matching is
// case-insensitive substring.
var refusalPhrases = []string{
	"not available in the provided document",
	"information is not available",
	"does not contain the answer",
	"context does not contain",
	"no information about",
	"cannot be answered from the provided",
}

// classifyAnswer maps a generated answer to its status. Empty answers count
// as insufficient context rather than a failure, since generation itself
// succeeded.
func classifyAnswer(text string) models.AnswerStatus {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return models.StatusInsufficientContext
	}
	lower := strings.ToLower(trimmed)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return models.StatusInsufficientContext
		}
	}
	return models.StatusAnswered
}
