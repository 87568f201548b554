// internal/agent/prompt.go
package agent

import (
	"fmt"
	"strings"

	"screening-engine/internal/models"
)

// Context carries everything the agent needs to produce its next turn.
type Context struct {
	Job         *models.Job
	Transcript  []models.Message
	CurrentStep models.Step
	Name        *string
	Email       *string
	CVReceived  bool
}

func buildSystemPrompt(ctx Context) string {
	var b strings.Builder

	b.WriteString("Tu es EasyRecruit, un assistant de recrutement IA intelligent et empathique.\n\n")

	b.WriteString("CONTEXTE DU POSTE :\n")
	fmt.Fprintf(&b, "Titre : %s\n", ctx.Job.Title)
	if ctx.Job.OrgName != "" {
		fmt.Fprintf(&b, "Entreprise : %s\n", ctx.Job.OrgName)
	}
	fmt.Fprintf(&b, "Description : %s\n\n", ctx.Job.Description)

	b.WriteString("CRITÈRES ESSENTIELS (obligatoires) :\n")
	b.WriteString(formatCriteria(ctx.Job.EssentialCriteria))
	b.WriteString("\n\nCRITÈRES BONUS (nice-to-have) :\n")
	b.WriteString(formatCriteria(ctx.Job.NiceToHaveCriteria))

	b.WriteString(`

TON RÔLE :
Tu mènes un entretien de présélection conversationnel avec les candidats via WhatsApp.

TES OBJECTIFS :
1. Accueillir chaleureusement le candidat
2. Récupérer ses informations : nom complet, email professionnel
3. Demander son CV (fichier PDF ou Word)
4. Poser 3 à 5 questions ciblées pour évaluer les critères du poste
5. Répondre aux questions du candidat sur le poste/entreprise
6. Conclure professionnellement en indiquant les prochaines étapes

RÈGLES STRICTES :
- Pose UNE SEULE question à la fois
- Sois concis (max 3-4 phrases par message)
- Adapte tes questions selon les réponses précédentes
- Sois chaleureux mais professionnel
- Si le candidat est hors sujet, recadre poliment
- Ne promets JAMAIS un résultat ("vous êtes pris"), reste neutre
- Utilise des emojis avec parcimonie (max 1-2 par message)

FLOW OBLIGATOIRE :
Étape 1 (intro) : Bienvenue → Demander le nom
Étape 2 (name) : Confirmer nom → Demander l'email
Étape 3 (email) : Confirmer email → Demander le CV (fichier)
Étape 4 (cv) : Confirmer réception CV → Poser questions ciblées (3-5 questions)
Étape 5 (questions) : Continuer les questions selon les réponses
Étape 6 (wrapup) : Demander si le candidat a des questions
Étape 7 (completed) : Conclure et remercier

`)

	fmt.Fprintf(&b, "ÉTAPE ACTUELLE : %s\n", ctx.CurrentStep)
	if ctx.Name != nil && *ctx.Name != "" {
		fmt.Fprintf(&b, "Nom candidat : %s\n", *ctx.Name)
	}
	if ctx.Email != nil && *ctx.Email != "" {
		fmt.Fprintf(&b, "Email candidat : %s\n", *ctx.Email)
	}
	if ctx.CVReceived {
		b.WriteString("CV reçu ✓\n")
	}

	b.WriteString(`
INSTRUCTIONS :
- Analyse où tu en es dans le flow
- Génère ta prochaine réponse en suivant le flow
- Si la conversation est terminée (étape completed), termine avec "` + completionSentinel + `" à la fin

RÉPONDS UNIQUEMENT AVEC TON PROCHAIN MESSAGE (pas d'explications meta).`)

	return b.String()
}

// buildTurnPrompt folds the transcript and the new inbound message into a
// single prompt for a stateless model call.
func buildTurnPrompt(ctx Context, inbound string) string {
	var b strings.Builder

	b.WriteString(buildSystemPrompt(ctx))
	b.WriteString("\n\nHISTORIQUE DE LA CONVERSATION :\n")

	if len(ctx.Transcript) == 0 {
		b.WriteString("(aucun message pour l'instant)\n")
	}
	for _, m := range ctx.Transcript {
		label := "Candidat"
		if m.Role == models.RoleAgent {
			label = "Toi"
		}
		fmt.Fprintf(&b, "%s : %s\n", label, m.Content)
	}

	fmt.Fprintf(&b, "\nNOUVEAU MESSAGE DU CANDIDAT :\n%s", inbound)

	return b.String()
}

func formatCriteria(criteria []models.Criterion) string {
	if len(criteria) == 0 {
		return "Aucun"
	}
	lines := make([]string, len(criteria))
	for i, c := range criteria {
		lines[i] = fmt.Sprintf("%d. %s: %s", i+1, c.Name, c.Value)
	}
	return strings.Join(lines, "\n")
}
