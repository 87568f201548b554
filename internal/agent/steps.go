// internal/agent/steps.go
package agent

import (
	"strings"

	"screening-engine/internal/models"
)

// NextStep applies the deterministic step-transition table. It is the
// authoritative override: the model's free text only decides completion,
// via the sentinel marker.
func NextStep(current models.Step, complete bool, inbound string) models.Step {
	if complete {
		return models.StepCompleted
	}

	message := strings.ToLower(strings.TrimSpace(inbound))

	switch current {
	case models.StepIntro:
		if len(message) > 2 && !strings.Contains(message, "bonjour") && !strings.Contains(message, "salut") {
			return models.StepName
		}
		return models.StepIntro

	case models.StepName:
		if strings.Contains(message, "@") {
			return models.StepEmail
		}
		return models.StepName

	case models.StepEmail:
		return models.StepCV

	case models.StepCV:
		return models.StepQuestions

	case models.StepQuestions:
		return models.StepQuestions

	case models.StepWrapup:
		return models.StepCompleted

	default:
		return current
	}
}

// IsGreetingOnly reports whether the inbound text is a bare greeting not
// worth capturing as a name.
func IsGreetingOnly(inbound string) bool {
	message := strings.ToLower(strings.TrimSpace(inbound))
	return len(message) <= 2 || strings.Contains(message, "bonjour") || strings.Contains(message, "salut")
}
