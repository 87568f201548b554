// Package agent drives the interview: it wraps the language-model call
// with the structured system prompt and applies the deterministic
// step-advance table to the result.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"screening-engine/internal/models"
)

const completionSentinel = "CONVERSATION_COMPLETE"

// ContentGenerator is the slice of the model client the agent needs.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Turn is the agent's answer to one inbound message.
type Turn struct {
	Utterance string
	NextStep  models.Step
	Complete  bool
}

type Agent struct{}

func New() *Agent {
	return &Agent{}
}

// Reply produces the next agent utterance for an inbound candidate
// message. The sentinel marker is stripped before the utterance is
// returned; the step transition is decided by the table in steps.go, with
// the sentinel as the only model-driven override.
func (a *Agent) Reply(ctx context.Context, gen ContentGenerator, inbound string, convCtx Context) (*Turn, error) {
	output, err := gen.GenerateContent(ctx, buildTurnPrompt(convCtx, inbound))
	if err != nil {
		return nil, fmt.Errorf("agent reply at step %s: %w", convCtx.CurrentStep, err)
	}

	complete := strings.Contains(output, completionSentinel)
	utterance := strings.TrimSpace(strings.ReplaceAll(output, completionSentinel, ""))

	return &Turn{
		Utterance: utterance,
		NextStep:  NextStep(convCtx.CurrentStep, complete, inbound),
		Complete:  complete,
	}, nil
}

// SummaryInput is everything the recruiter-facing summary is built from.
type SummaryInput struct {
	Name         string
	Email        string
	CVData       *models.ParsedCV
	Replies      []string
	Score        float64
	ScoreDetails []models.ScoreDetail
}

// Summarize produces the four-paragraph recruiter summary. On model
// failure it returns a fixed fallback instead of an error, so a summary
// hiccup never blocks finalization.
func (a *Agent) Summarize(ctx context.Context, gen ContentGenerator, in SummaryInput) string {
	output, err := gen.GenerateContent(ctx, buildSummaryPrompt(in))
	if err != nil {
		return "Résumé non disponible"
	}
	return strings.TrimSpace(output)
}

func buildSummaryPrompt(in SummaryInput) string {
	var b strings.Builder

	b.WriteString("Tu es un expert en recrutement qui rédige des résumés de candidatures.\n\n")
	b.WriteString("Génère un résumé professionnel pour un recruteur basé sur cette candidature.\n\n")

	fmt.Fprintf(&b, "CANDIDAT :\nNom : %s\nEmail : %s\n\n", in.Name, in.Email)

	b.WriteString("CV PARSÉ :\n")
	if in.CVData != nil {
		if data, err := json.MarshalIndent(in.CVData, "", "  "); err == nil {
			b.Write(data)
		}
	} else {
		b.WriteString("Non disponible")
	}

	b.WriteString("\n\nCONVERSATION (extraits pertinents) :\n")
	if len(in.Replies) == 0 {
		b.WriteString("Aucune conversation disponible")
	}
	for i, reply := range in.Replies {
		if runes := []rune(reply); len(runes) > 200 {
			reply = string(runes[:200])
		}
		fmt.Fprintf(&b, "Q%d: %s\n", i+1, reply)
	}

	fmt.Fprintf(&b, "\nSCORE :\n%.1f%%\n\nDÉTAILS DU SCORING :\n", in.Score)
	if data, err := json.MarshalIndent(in.ScoreDetails, "", "  "); err == nil {
		b.Write(data)
	}

	b.WriteString(`

Rédige un résumé en 4 paragraphes :

1. PROFIL GÉNÉRAL (2-3 phrases)
- Poste actuel, années d'expérience
- Compétences principales

2. POINTS FORTS (3-4 bullet points)
- Éléments qui correspondent bien au poste
- Citations ou preuves concrètes de la conversation/CV

3. POINTS D'ATTENTION (2-3 bullet points)
- Critères non remplis ou partiellement remplis
- Zones à creuser en entretien

4. RECOMMANDATION FINALE (1 phrase)
- Recommandes-tu un entretien ? Avec quelle priorité ?

Ton style : factuel, concis, objectif, sans jargon.`)

	return b.String()
}
