// Package scoring evaluates each job criterion independently against the
// résumé and the candidate's transcript replies, and aggregates a
// weighted score with a recommendation tier.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"screening-engine/internal/common/logger"
	"screening-engine/internal/llm"
	"screening-engine/internal/models"
)

const (
	essentialPool = 70.0
	bonusPool     = 30.0
	maxScore      = 100.0
)

// Generator is the slice of the model client used per criterion.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Input is everything one scoring run evaluates.
type Input struct {
	CVData  *models.ParsedCV
	Replies []string
}

type criterionMatch struct {
	Status      models.CriterionStatus `json:"status"`
	Evidence    string                 `json:"evidence"`
	Explanation string                 `json:"explanation"`
}

// Engine runs criterion evaluations with bounded concurrency.
type Engine struct {
	maxConcurrent int
	perCallLimit  time.Duration
	logger        logger.Logger
}

func NewEngine(maxConcurrent int, perCallLimit time.Duration, log logger.Logger) *Engine {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Engine{maxConcurrent: maxConcurrent, perCallLimit: perCallLimit, logger: log}
}

// Score evaluates all criteria and aggregates the weighted total.
// Essential criteria share 70 points evenly with partial credit;
// nice-to-have criteria share 30 points evenly but only excellent/good
// earn their share. Per-criterion failures degrade to insufficient and
// never abort the run. Details keep criterion order regardless of which
// evaluation finishes first.
func (e *Engine) Score(ctx context.Context, gen Generator, essential, niceToHave []models.Criterion, in Input) (*models.ScoringResult, error) {
	essentialMatches := e.evaluateAll(ctx, gen, essential, in)
	bonusMatches := e.evaluateAll(ctx, gen, niceToHave, in)

	var score float64
	var details []models.ScoreDetail

	perEssential := 0.0
	if len(essential) > 0 {
		perEssential = essentialPool / float64(len(essential))
	}

	for i, criterion := range essential {
		match := essentialMatches[i]

		var points float64
		marker := "❌"
		switch match.Status {
		case models.StatusExcellent:
			points = perEssential
			marker = "✅"
		case models.StatusGood:
			points = perEssential * 0.7
			marker = "✅"
		case models.StatusPartial:
			points = perEssential * 0.4
			marker = "🔶"
		}

		score += points
		details = append(details, models.ScoreDetail{
			Criterion: criterion.Name,
			Status:    match.Status,
			Evidence:  match.Evidence,
			Points:    roundTenth(points),
			Marker:    marker,
		})
	}

	perBonus := 0.0
	if len(niceToHave) > 0 {
		perBonus = bonusPool / float64(len(niceToHave))
	}

	for i, criterion := range niceToHave {
		match := bonusMatches[i]
		if match.Status != models.StatusExcellent && match.Status != models.StatusGood {
			continue
		}

		score += perBonus
		details = append(details, models.ScoreDetail{
			Criterion: criterion.Name,
			Status:    "présent",
			Evidence:  match.Evidence,
			Points:    roundTenth(perBonus),
			Marker:    "✅",
		})
	}

	score = math.Min(score, maxScore)

	return &models.ScoringResult{
		Score:          roundTenth(score),
		Details:        details,
		Recommendation: recommendationFor(score),
	}, nil
}

// evaluateAll fans the evaluations out over a bounded worker group and
// returns matches indexed by criterion position.
func (e *Engine) evaluateAll(ctx context.Context, gen Generator, criteria []models.Criterion, in Input) []criterionMatch {
	matches := make([]criterionMatch, len(criteria))

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)

	for i, criterion := range criteria {
		i, criterion := i, criterion
		g.Go(func() error {
			matches[i] = e.evaluate(groupCtx, gen, criterion, in)
			return nil
		})
	}

	// Workers never return errors; failures degrade per criterion.
	_ = g.Wait()

	return matches
}

func (e *Engine) evaluate(ctx context.Context, gen Generator, criterion models.Criterion, in Input) criterionMatch {
	callCtx := ctx
	if e.perCallLimit > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.perCallLimit)
		defer cancel()
	}

	output, err := gen.GenerateContent(callCtx, buildEvaluationPrompt(criterion, in))
	if err != nil {
		e.logger.WithError(err).Warn("criterion evaluation failed", map[string]interface{}{
			"criterion": criterion.Name,
		})
		return insufficientMatch()
	}

	var match criterionMatch
	if err := json.Unmarshal([]byte(llm.ExtractJSON(output)), &match); err != nil {
		e.logger.WithError(err).Warn("criterion evaluation returned invalid payload", map[string]interface{}{
			"criterion": criterion.Name,
		})
		return insufficientMatch()
	}

	switch match.Status {
	case models.StatusExcellent, models.StatusGood, models.StatusPartial, models.StatusInsufficient:
	default:
		return insufficientMatch()
	}

	return match
}

func insufficientMatch() criterionMatch {
	return criterionMatch{
		Status:      models.StatusInsufficient,
		Evidence:    "Erreur lors de l'évaluation",
		Explanation: "Impossible d'évaluer ce critère",
	}
}

func buildEvaluationPrompt(criterion models.Criterion, in Input) string {
	cvJSON := []byte("null")
	if in.CVData != nil {
		if data, err := json.MarshalIndent(in.CVData, "", "  "); err == nil {
			cvJSON = data
		}
	}
	repliesJSON, _ := json.MarshalIndent(in.Replies, "", "  ")

	return fmt.Sprintf(`Tu es un expert en recrutement. Évalue si ce candidat remplit le critère suivant.

CRITÈRE À ÉVALUER :
- Nom : %s
- Type : %s
- Requis : %s

DONNÉES DU CANDIDAT :
- CV parsé : %s
- Réponses conversation : %s

Évalue si le candidat remplit ce critère et réponds UNIQUEMENT avec un objet JSON valide :

{
  "status": "excellent" | "good" | "partial" | "insufficient",
  "evidence": "Citation ou preuve concrète du CV/conversation",
  "explanation": "Explication courte (1 phrase)"
}

Status guide :
- "excellent" : Le critère est parfaitement rempli avec preuves solides
- "good" : Le critère est bien rempli avec preuves
- "partial" : Le critère est partiellement rempli
- "insufficient" : Le critère n'est pas rempli`,
		criterion.Name, criterion.Type, criterion.Value, cvJSON, repliesJSON)
}

func recommendationFor(score float64) string {
	switch {
	case score >= 80:
		return "PRIORITÉ HAUTE - Profil excellent, à interviewer rapidement"
	case score >= 60:
		return "PRIORITÉ MOYENNE - Profil intéressant, à considérer"
	case score >= 40:
		return "PRIORITÉ BASSE - Profil à revoir selon le pool de candidats"
	default:
		return "NON RECOMMANDÉ - Critères essentiels non remplis"
	}
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
