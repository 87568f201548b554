// Package orchestrator is the state machine tying the engine together:
// per inbound event it resolves the job, loads or creates candidate and
// conversation, routes to media or text handling, persists transcript and
// step, and triggers finalization exactly once.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"screening-engine/internal/agent"
	commonerrors "screening-engine/internal/common/errors"
	"screening-engine/internal/common/logger"
	"screening-engine/internal/common/metrics"
	"screening-engine/internal/credentials"
	"screening-engine/internal/ingest"
	"screening-engine/internal/llm"
	"screening-engine/internal/models"
	"screening-engine/internal/provider"
	"screening-engine/internal/router"
	"screening-engine/internal/scoring"
	"screening-engine/internal/store"
)

// Candidate-facing fixed messages.
const (
	msgNoJob = "Bonjour ! Pour postuler, veuillez utiliser le lien WhatsApp fourni dans l'offre d'emploi. Merci."

	msgJobNotFound = "Offre d'emploi non trouvée. Veuillez contacter le recruteur."

	msgCVReceived = "Merci ! J'ai bien reçu votre CV. Je vais maintenant vous poser quelques questions pour mieux comprendre votre profil."

	cvPlaceholder = "[CV envoyé]"

	cvSyntheticInstruction = "[CV reçu, commencer les questions]"
)

// Inbound is one webhook event, already acknowledged to the provider.
type Inbound struct {
	From             string
	Body             string
	MediaURL         string
	MediaContentType string
	MessageSID       string
}

// Generator is the per-organization model client handle.
type Generator = agent.ContentGenerator

type JobStore interface {
	FindByID(ctx context.Context, id string) (*models.Job, error)
}

type CandidateStore interface {
	Upsert(ctx context.Context, jobID, encryptedPhone, phoneHash string) (*models.Candidate, error)
	FindByID(ctx context.Context, id string) (*models.Candidate, error)
	UpdateContact(ctx context.Context, id string, name, email *string) error
	UpdateResume(ctx context.Context, id string, cv *models.ParsedCV, cvURL *string) error
	UpdateScore(ctx context.Context, id string, score float64, details []models.ScoreDetail, summary string) error
}

type ConversationStore interface {
	FindOrCreate(ctx context.Context, candidateID string) (*models.Conversation, error)
	UpdateTranscript(ctx context.Context, id string, messages []models.Message, step models.Step, completedAt *time.Time) error
}

type JobResolver interface {
	Resolve(ctx context.Context, phone, body string) (*router.Resolution, error)
}

type Deduper interface {
	MarkMessageProcessed(ctx context.Context, messageSID string) (bool, error)
}

type Cipher interface {
	Encrypt(plaintext string) (string, error)
	HashPhone(phone string) string
}

type Dialogue interface {
	Reply(ctx context.Context, gen agent.ContentGenerator, inbound string, convCtx agent.Context) (*agent.Turn, error)
	Summarize(ctx context.Context, gen agent.ContentGenerator, in agent.SummaryInput) string
}

type Scorer interface {
	Score(ctx context.Context, gen scoring.Generator, essential, niceToHave []models.Criterion, in scoring.Input) (*models.ScoringResult, error)
}

type Ingestor interface {
	Run(ctx context.Context, gen ingest.Generator, creds *credentials.Credentials, candidateID, mediaURL, contentType string) (*ingest.Result, error)
}

type Sender interface {
	Send(ctx context.Context, req provider.SendRequest) error
}

type CredentialSource interface {
	Resolve(ctx context.Context, orgID string) (*credentials.Credentials, error)
}

type GeneratorSource interface {
	ForAPIKey(ctx context.Context, apiKey string) (Generator, error)
}

// FactorySource adapts the model client factory to GeneratorSource.
type FactorySource struct {
	Factory *llm.Factory
}

func (s FactorySource) ForAPIKey(ctx context.Context, apiKey string) (Generator, error) {
	return s.Factory.ForAPIKey(ctx, apiKey)
}

type Orchestrator struct {
	jobs          JobStore
	candidates    CandidateStore
	conversations ConversationStore
	resolver      JobResolver
	dedupe        Deduper
	cipher        Cipher
	dialogue      Dialogue
	scorer        Scorer
	ingestor      Ingestor
	sender        Sender
	creds         CredentialSource
	generators    GeneratorSource
	locks         *keyedMutex
	logger        logger.Logger
}

type Config struct {
	Jobs          JobStore
	Candidates    CandidateStore
	Conversations ConversationStore
	Resolver      JobResolver
	Dedupe        Deduper
	Cipher        Cipher
	Dialogue      Dialogue
	Scorer        Scorer
	Ingestor      Ingestor
	Sender        Sender
	Credentials   CredentialSource
	Generators    GeneratorSource
	Logger        logger.Logger
}

func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		jobs:          cfg.Jobs,
		candidates:    cfg.Candidates,
		conversations: cfg.Conversations,
		resolver:      cfg.Resolver,
		dedupe:        cfg.Dedupe,
		cipher:        cfg.Cipher,
		dialogue:      cfg.Dialogue,
		scorer:        cfg.Scorer,
		ingestor:      cfg.Ingestor,
		sender:        cfg.Sender,
		creds:         cfg.Credentials,
		generators:    cfg.Generators,
		locks:         newKeyedMutex(),
		logger:        cfg.Logger,
	}
}

// Process handles one inbound event end to end. It runs on a background
// worker; the webhook was already acknowledged with 200.
func (o *Orchestrator) Process(ctx context.Context, in Inbound) error {
	first, err := o.dedupe.MarkMessageProcessed(ctx, in.MessageSID)
	if err != nil {
		// Dedup store trouble must not drop the message; at-least-once
		// beats at-most-once here.
		o.logger.WithError(err).Warn("message dedup check failed", map[string]interface{}{
			"message_sid": in.MessageSID,
		})
	} else if !first {
		metrics.InboundMessagesDuplicate.Inc()
		return nil
	}

	phone := strings.TrimPrefix(strings.TrimSpace(in.From), "whatsapp:")
	body := strings.TrimSpace(in.Body)

	resolution, err := o.resolver.Resolve(ctx, phone, body)
	if err != nil {
		if errors.Is(err, router.ErrNoJobResolved) {
			o.sendWithDefaults(ctx, phone, msgNoJob)
			return nil
		}
		metrics.ProcessingFailures.WithLabelValues("routing", errCode(err)).Inc()
		return err
	}

	job, err := o.jobs.FindByID(ctx, resolution.JobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			o.sendWithDefaults(ctx, phone, msgJobNotFound)
			return nil
		}
		metrics.ProcessingFailures.WithLabelValues("job_load", errCode(err)).Inc()
		return err
	}

	creds, err := o.creds.Resolve(ctx, job.OrgID)
	if err != nil {
		metrics.ProcessingFailures.WithLabelValues("credentials", errCode(err)).Inc()
		return err
	}

	candidate := resolution.Candidate
	if candidate == nil {
		encrypted, err := o.cipher.Encrypt(phone)
		if err != nil {
			return err
		}
		candidate, err = o.candidates.Upsert(ctx, job.ID, encrypted, o.cipher.HashPhone(phone))
		if err != nil {
			metrics.ProcessingFailures.WithLabelValues("candidate_upsert", errCode(err)).Inc()
			return err
		}
	}

	// Serialize all mutations for this candidate's conversation.
	unlock := o.locks.Lock(candidate.ID)
	defer unlock()

	conversation, err := o.conversations.FindOrCreate(ctx, candidate.ID)
	if err != nil {
		metrics.ProcessingFailures.WithLabelValues("conversation_load", errCode(err)).Inc()
		return err
	}

	gen, err := o.generators.ForAPIKey(ctx, creds.GenAIAPIKey)
	if err != nil {
		metrics.ProcessingFailures.WithLabelValues("model_client", errCode(err)).Inc()
		return err
	}

	if in.MediaURL != "" && candidate.CVData == nil {
		return o.processMedia(ctx, gen, creds, job, candidate, conversation, phone, in)
	}

	return o.processText(ctx, gen, creds, job, candidate, conversation, phone, body)
}

// processMedia runs the ingestion pipeline, records the placeholder
// transcript entry, and synthesizes the first question.
func (o *Orchestrator) processMedia(ctx context.Context, gen Generator, creds *credentials.Credentials, job *models.Job, candidate *models.Candidate, conversation *models.Conversation, phone string, in Inbound) error {
	contentType := in.MediaContentType
	if contentType == "" {
		contentType = "application/pdf"
	}

	result, err := o.ingestor.Run(ctx, gen, creds, candidate.ID, in.MediaURL, contentType)
	if err != nil {
		metrics.ProcessingFailures.WithLabelValues("ingestion", errCode(err)).Inc()
		o.logger.WithError(err).Warn("resume ingestion failed", map[string]interface{}{
			"candidate_id": candidate.ID,
		})
		// Step unchanged; the candidate may retry by resending the file.
		hint := err.Error()
		if runes := []rune(hint); len(runes) > 80 {
			hint = string(runes[:80])
		}
		o.send(ctx, creds, phone,
			"Désolé, je n'ai pas pu traiter votre CV ("+hint+"). Veuillez réessayer avec un fichier PDF valide (moins de 10MB).")
		return nil
	}

	if err := o.candidates.UpdateResume(ctx, candidate.ID, result.CV, result.ArchiveURL); err != nil {
		metrics.ProcessingFailures.WithLabelValues("persistence", errCode(err)).Inc()
		return err
	}
	candidate.CVData = result.CV
	if candidate.Name == nil {
		candidate.Name = result.CV.Name
	}
	if candidate.Email == nil {
		candidate.Email = result.CV.Email
	}

	// First transcript entry: the placeholder standing in for the file.
	now := time.Now().UTC()
	messages := append(conversation.Messages, models.Message{
		Role:      models.RoleCandidate,
		Content:   cvPlaceholder,
		Timestamp: now,
	})
	if err := o.conversations.UpdateTranscript(ctx, conversation.ID, messages, models.StepCV, nil); err != nil {
		metrics.ProcessingFailures.WithLabelValues("persistence", errCode(err)).Inc()
		return err
	}

	o.send(ctx, creds, phone, msgCVReceived)

	// Synthesize the first question: the model sees an agent-only
	// instruction, never a literal candidate message.
	turn, err := o.dialogue.Reply(ctx, gen, cvSyntheticInstruction, agent.Context{
		Job:         job,
		Transcript:  messages,
		CurrentStep: models.StepQuestions,
		Name:        candidate.Name,
		Email:       candidate.Email,
		CVReceived:  true,
	})
	if err != nil {
		metrics.ProcessingFailures.WithLabelValues("dialogue", errCode(err)).Inc()
		return err
	}

	messages = append(messages, models.Message{
		Role:      models.RoleAgent,
		Content:   turn.Utterance,
		Timestamp: time.Now().UTC(),
	})
	if err := o.conversations.UpdateTranscript(ctx, conversation.ID, messages, turn.NextStep, nil); err != nil {
		metrics.ProcessingFailures.WithLabelValues("persistence", errCode(err)).Inc()
		return err
	}

	o.send(ctx, creds, phone, turn.Utterance)
	return nil
}

// processText runs one dialogue turn and persists both transcript
// entries.
func (o *Orchestrator) processText(ctx context.Context, gen Generator, creds *credentials.Credentials, job *models.Job, candidate *models.Candidate, conversation *models.Conversation, phone, body string) error {
	wasComplete := conversation.Completed()
	step := conversation.CurrentStep

	turn, err := o.dialogue.Reply(ctx, gen, body, agent.Context{
		Job:         job,
		Transcript:  conversation.Messages,
		CurrentStep: step,
		Name:        candidate.Name,
		Email:       candidate.Email,
		CVReceived:  candidate.CVData != nil,
	})
	if err != nil {
		// Hard failure: no outbound message, the candidate retries by
		// sending another message.
		metrics.ProcessingFailures.WithLabelValues("dialogue", errCode(err)).Inc()
		return err
	}

	now := time.Now().UTC()
	messages := append(conversation.Messages,
		models.Message{Role: models.RoleCandidate, Content: body, Timestamp: now},
		models.Message{Role: models.RoleAgent, Content: turn.Utterance, Timestamp: now},
	)

	var completedAt *time.Time
	if turn.Complete {
		completedAt = &now
	}

	if err := o.conversations.UpdateTranscript(ctx, conversation.ID, messages, turn.NextStep, completedAt); err != nil {
		metrics.ProcessingFailures.WithLabelValues("persistence", errCode(err)).Inc()
		return err
	}

	o.captureContact(ctx, candidate, step, body)

	// Outbound failures are logged, never rolled back: the transcript is
	// the durable source of truth.
	o.send(ctx, creds, phone, turn.Utterance)

	if turn.Complete && !wasComplete {
		o.finalize(ctx, gen, job, candidate.ID, messages)
	}

	return nil
}

// captureContact opportunistically stores name/email from the inbound
// text, keyed to the pre-advance step. A failed update never blocks the
// step transition.
func (o *Orchestrator) captureContact(ctx context.Context, candidate *models.Candidate, step models.Step, body string) {
	var name, email *string

	if candidate.Name == nil && step == models.StepIntro && !agent.IsGreetingOnly(body) {
		trimmed := strings.TrimSpace(body)
		name = &trimmed
	}
	if candidate.Email == nil && step == models.StepName && strings.Contains(body, "@") {
		trimmed := strings.TrimSpace(body)
		email = &trimmed
	}

	if name == nil && email == nil {
		return
	}

	if err := o.candidates.UpdateContact(ctx, candidate.ID, name, email); err != nil {
		o.logger.WithError(err).Warn("contact capture failed", map[string]interface{}{
			"candidate_id": candidate.ID,
		})
		return
	}
	if name != nil {
		candidate.Name = name
	}
	if email != nil {
		candidate.Email = email
	}
}

// finalize scores the candidate and persists the outcome. It only runs
// on the first completion; duplicate deliveries see wasComplete and never
// reach here.
func (o *Orchestrator) finalize(ctx context.Context, gen Generator, job *models.Job, candidateID string, messages []models.Message) {
	candidate, err := o.candidates.FindByID(ctx, candidateID)
	if err != nil {
		o.logger.WithError(err).Error("finalization aborted, candidate load failed", map[string]interface{}{
			"candidate_id": candidateID,
		})
		return
	}
	if candidate.CVData == nil {
		o.logger.Error("finalization aborted, no resume on file", map[string]interface{}{
			"candidate_id": candidateID,
		})
		return
	}

	var replies []string
	for _, m := range messages {
		if m.Role == models.RoleCandidate {
			replies = append(replies, m.Content)
		}
	}

	result, err := o.scorer.Score(ctx, gen, job.EssentialCriteria, job.NiceToHaveCriteria, scoring.Input{
		CVData:  candidate.CVData,
		Replies: replies,
	})
	if err != nil {
		metrics.ProcessingFailures.WithLabelValues("scoring", errCode(err)).Inc()
		o.logger.WithError(err).Error("scoring failed", map[string]interface{}{
			"candidate_id": candidateID,
		})
		return
	}

	name := "Candidat"
	if candidate.Name != nil {
		name = *candidate.Name
	}
	email := ""
	if candidate.Email != nil {
		email = *candidate.Email
	}

	summary := o.dialogue.Summarize(ctx, gen, agent.SummaryInput{
		Name:         name,
		Email:        email,
		CVData:       candidate.CVData,
		Replies:      replies,
		Score:        result.Score,
		ScoreDetails: result.Details,
	})

	if err := o.candidates.UpdateScore(ctx, candidateID, result.Score, result.Details, summary); err != nil {
		metrics.ProcessingFailures.WithLabelValues("persistence", errCode(err)).Inc()
		o.logger.WithError(err).Error("score persistence failed", map[string]interface{}{
			"candidate_id": candidateID,
		})
		return
	}

	metrics.ScreeningsCompleted.Inc()
	o.logger.Info("screening finalized", map[string]interface{}{
		"candidate_id": candidateID,
		"score":        result.Score,
	})
}

// send delivers one outbound message best-effort.
func (o *Orchestrator) send(ctx context.Context, creds *credentials.Credentials, phone, body string) {
	err := o.sender.Send(ctx, provider.SendRequest{
		AccountSID: creds.TwilioAccountSID,
		AuthToken:  creds.TwilioAuthToken,
		From:       creds.TwilioWhatsAppNumber,
		To:         "+" + strings.TrimPrefix(phone, "+"),
		Body:       body,
	})
	if err != nil {
		o.logger.WithError(err).Warn("outbound message failed", map[string]interface{}{
			"body_length": len(body),
		})
	}
}

// sendWithDefaults is the no-job path: no organization is known, so the
// process-wide default credentials apply.
func (o *Orchestrator) sendWithDefaults(ctx context.Context, phone, body string) {
	creds, err := o.creds.Resolve(ctx, "")
	if err != nil {
		o.logger.WithError(err).Warn("default credential resolution failed", nil)
		return
	}
	o.send(ctx, creds, phone, body)
}

func errCode(err error) string {
	var stdErr *commonerrors.StandardError
	if errors.As(err, &stdErr) {
		return string(stdErr.Code)
	}
	return "INTERNAL_ERROR"
}
