// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screening-engine/internal/agent"
	"screening-engine/internal/common/logger"
	"screening-engine/internal/credentials"
	"screening-engine/internal/ingest"
	"screening-engine/internal/models"
	"screening-engine/internal/provider"
	"screening-engine/internal/router"
	"screening-engine/internal/scoring"
	"screening-engine/internal/store"
)

// ==========================
// Test Helper Functions
// ==========================

type stubJobs struct {
	job *models.Job
	err error
}

func (s *stubJobs) FindByID(_ context.Context, _ string) (*models.Job, error) {
	return s.job, s.err
}

type stubCandidates struct {
	candidate    *models.Candidate
	upserts      int
	contactName  *string
	contactEmail *string
	resume       *models.ParsedCV
	scoreUpdates int
	savedScore   float64
	savedSummary string
}

func (s *stubCandidates) Upsert(_ context.Context, jobID, encryptedPhone, phoneHash string) (*models.Candidate, error) {
	s.upserts++
	return s.candidate, nil
}

func (s *stubCandidates) FindByID(_ context.Context, _ string) (*models.Candidate, error) {
	return s.candidate, nil
}

func (s *stubCandidates) UpdateContact(_ context.Context, _ string, name, email *string) error {
	s.contactName = name
	s.contactEmail = email
	return nil
}

func (s *stubCandidates) UpdateResume(_ context.Context, _ string, cv *models.ParsedCV, _ *string) error {
	s.resume = cv
	return nil
}

func (s *stubCandidates) UpdateScore(_ context.Context, _ string, score float64, _ []models.ScoreDetail, summary string) error {
	s.scoreUpdates++
	s.savedScore = score
	s.savedSummary = summary
	return nil
}

type stubConversations struct {
	conv         *models.Conversation
	transcripts  [][]models.Message
	steps        []models.Step
	completedAts []*time.Time
}

func (s *stubConversations) FindOrCreate(_ context.Context, _ string) (*models.Conversation, error) {
	return s.conv, nil
}

func (s *stubConversations) UpdateTranscript(_ context.Context, _ string, messages []models.Message, step models.Step, completedAt *time.Time) error {
	s.transcripts = append(s.transcripts, messages)
	s.steps = append(s.steps, step)
	s.completedAts = append(s.completedAts, completedAt)
	return nil
}

type stubResolver struct {
	resolution *router.Resolution
	err        error
}

func (s *stubResolver) Resolve(_ context.Context, _, _ string) (*router.Resolution, error) {
	return s.resolution, s.err
}

type stubDeduper struct {
	first bool
	err   error
}

func (s *stubDeduper) MarkMessageProcessed(_ context.Context, _ string) (bool, error) {
	return s.first, s.err
}

type stubCipher struct{}

func (stubCipher) Encrypt(plaintext string) (string, error) { return "enc:" + plaintext, nil }
func (stubCipher) HashPhone(phone string) string            { return "hash:" + phone }

type stubDialogue struct {
	turn     *agent.Turn
	err      error
	summary  string
	inbounds []string
	contexts []agent.Context
}

func (s *stubDialogue) Reply(_ context.Context, _ agent.ContentGenerator, inbound string, convCtx agent.Context) (*agent.Turn, error) {
	s.inbounds = append(s.inbounds, inbound)
	s.contexts = append(s.contexts, convCtx)
	return s.turn, s.err
}

func (s *stubDialogue) Summarize(_ context.Context, _ agent.ContentGenerator, _ agent.SummaryInput) string {
	return s.summary
}

type stubScorer struct {
	result *models.ScoringResult
	err    error
	calls  int
}

func (s *stubScorer) Score(_ context.Context, _ scoring.Generator, _, _ []models.Criterion, _ scoring.Input) (*models.ScoringResult, error) {
	s.calls++
	return s.result, s.err
}

type stubIngestor struct {
	result *ingest.Result
	err    error
	calls  int
}

func (s *stubIngestor) Run(_ context.Context, _ ingest.Generator, _ *credentials.Credentials, _, _, _ string) (*ingest.Result, error) {
	s.calls++
	return s.result, s.err
}

type stubSender struct {
	sent []provider.SendRequest
	err  error
}

func (s *stubSender) Send(_ context.Context, req provider.SendRequest) error {
	s.sent = append(s.sent, req)
	return s.err
}

type stubCredentialSource struct {
	creds *credentials.Credentials
}

func (s *stubCredentialSource) Resolve(_ context.Context, _ string) (*credentials.Credentials, error) {
	return s.creds, nil
}

type stubGenerator struct{}

func (stubGenerator) GenerateContent(_ context.Context, _ string) (string, error) {
	return "", errors.New("unused")
}

type stubGeneratorSource struct{}

func (stubGeneratorSource) ForAPIKey(_ context.Context, _ string) (Generator, error) {
	return stubGenerator{}, nil
}

type fixture struct {
	jobs          *stubJobs
	candidates    *stubCandidates
	conversations *stubConversations
	resolver      *stubResolver
	dedupe        *stubDeduper
	dialogue      *stubDialogue
	scorer        *stubScorer
	ingestor      *stubIngestor
	sender        *stubSender
	orch          *Orchestrator
}

func strPtr(s string) *string { return &s }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		jobs: &stubJobs{job: &models.Job{
			ID:      "job-1",
			OrgID:   "org-1",
			OrgName: "Acme",
			Title:   "Développeur Go",
			EssentialCriteria: []models.Criterion{
				{Name: "Go", Type: "skill", Value: "3 ans"},
			},
		}},
		candidates: &stubCandidates{candidate: &models.Candidate{
			ID:    "cand-1",
			JobID: "job-1",
		}},
		conversations: &stubConversations{conv: &models.Conversation{
			ID:          "conv-1",
			CandidateID: "cand-1",
			CurrentStep: models.StepIntro,
		}},
		resolver: &stubResolver{resolution: &router.Resolution{JobID: "job-1"}},
		dedupe:   &stubDeduper{first: true},
		dialogue: &stubDialogue{
			turn:    &agent.Turn{Utterance: "Quel est votre nom ?", NextStep: models.StepName},
			summary: "Résumé du candidat",
		},
		scorer: &stubScorer{result: &models.ScoringResult{
			Score:          82.5,
			Recommendation: "PRIORITÉ HAUTE - Profil excellent, à interviewer rapidement",
		}},
		ingestor: &stubIngestor{},
		sender:   &stubSender{},
	}

	f.orch = New(Config{
		Jobs:          f.jobs,
		Candidates:    f.candidates,
		Conversations: f.conversations,
		Resolver:      f.resolver,
		Dedupe:        f.dedupe,
		Cipher:        stubCipher{},
		Dialogue:      f.dialogue,
		Scorer:        f.scorer,
		Ingestor:      f.ingestor,
		Sender:        f.sender,
		Credentials: &stubCredentialSource{creds: &credentials.Credentials{
			TwilioAccountSID:     "AC123",
			TwilioAuthToken:      "token",
			TwilioWhatsAppNumber: "whatsapp:+14155550100",
			GenAIAPIKey:          "key",
		}},
		Generators: stubGeneratorSource{},
		Logger:     logger.NewTestLogger(t),
	})
	return f
}

func inboundText(body string) Inbound {
	return Inbound{
		From:       "whatsapp:+33612345678",
		Body:       body,
		MessageSID: "SM001",
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestProcess_FirstMessageCreatesCandidate(t *testing.T) {
	f := newFixture(t)

	err := f.orch.Process(context.Background(), inboundText("CODE-ABC234"))
	require.NoError(t, err)

	assert.Equal(t, 1, f.candidates.upserts)
	require.Len(t, f.conversations.transcripts, 1)
	transcript := f.conversations.transcripts[0]
	require.Len(t, transcript, 2)
	assert.Equal(t, models.RoleCandidate, transcript[0].Role)
	assert.Equal(t, "CODE-ABC234", transcript[0].Content)
	assert.Equal(t, models.RoleAgent, transcript[1].Role)
	assert.Equal(t, models.StepName, f.conversations.steps[0])

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "Quel est votre nom ?", f.sender.sent[0].Body)
	assert.Equal(t, "+33612345678", f.sender.sent[0].To)
}

func TestProcess_KnownCandidateSkipsUpsert(t *testing.T) {
	f := newFixture(t)
	f.resolver.resolution = &router.Resolution{
		JobID:     "job-1",
		Candidate: f.candidates.candidate,
	}

	err := f.orch.Process(context.Background(), inboundText("Jane Doe"))
	require.NoError(t, err)
	assert.Equal(t, 0, f.candidates.upserts)
}

func TestProcess_DuplicateDeliveryIgnored(t *testing.T) {
	f := newFixture(t)
	f.dedupe.first = false

	err := f.orch.Process(context.Background(), inboundText("bonjour"))
	require.NoError(t, err)

	assert.Empty(t, f.sender.sent)
	assert.Empty(t, f.conversations.transcripts)
	assert.Equal(t, 0, f.candidates.upserts)
}

func TestProcess_NoJobResolvedSendsGuidance(t *testing.T) {
	f := newFixture(t)
	f.resolver.resolution = nil
	f.resolver.err = router.ErrNoJobResolved

	err := f.orch.Process(context.Background(), inboundText("bonjour"))
	require.NoError(t, err)

	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0].Body, "veuillez utiliser le lien WhatsApp")
	assert.Empty(t, f.conversations.transcripts)
}

func TestProcess_JobNotFoundNotifiesCandidate(t *testing.T) {
	f := newFixture(t)
	f.jobs.job = nil
	f.jobs.err = store.ErrNotFound

	err := f.orch.Process(context.Background(), inboundText("CODE-ABC234"))
	require.NoError(t, err)

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "Offre d'emploi non trouvée. Veuillez contacter le recruteur.", f.sender.sent[0].Body)
}

func TestProcess_DialogueFailureSendsNothing(t *testing.T) {
	f := newFixture(t)
	f.dialogue.turn = nil
	f.dialogue.err = errors.New("model unavailable")

	err := f.orch.Process(context.Background(), inboundText("bonjour"))
	require.Error(t, err)

	assert.Empty(t, f.sender.sent)
	assert.Empty(t, f.conversations.transcripts)
}

// ==========================
// Media Path Tests
// ==========================

func TestProcess_MediaRunsIngestion(t *testing.T) {
	f := newFixture(t)
	f.resolver.resolution = &router.Resolution{JobID: "job-1", Candidate: f.candidates.candidate}
	f.conversations.conv.CurrentStep = models.StepCV
	f.ingestor.result = &ingest.Result{
		CV: &models.ParsedCV{Name: strPtr("Jane Doe"), Email: strPtr("jane@example.com")},
	}
	f.dialogue.turn = &agent.Turn{Utterance: "Première question ?", NextStep: models.StepQuestions}

	err := f.orch.Process(context.Background(), Inbound{
		From:             "whatsapp:+33612345678",
		MediaURL:         "https://api.twilio.com/media/ME123",
		MediaContentType: "application/pdf",
		MessageSID:       "SM002",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.ingestor.calls)
	require.NotNil(t, f.candidates.resume)

	// First write holds the placeholder, second appends the question.
	require.Len(t, f.conversations.transcripts, 2)
	assert.Equal(t, "[CV envoyé]", f.conversations.transcripts[0][0].Content)
	assert.Equal(t, models.StepCV, f.conversations.steps[0])
	assert.Equal(t, models.StepQuestions, f.conversations.steps[1])

	// The synthetic instruction drives the turn at the questions step.
	require.Len(t, f.dialogue.inbounds, 1)
	assert.Equal(t, "[CV reçu, commencer les questions]", f.dialogue.inbounds[0])
	assert.Equal(t, models.StepQuestions, f.dialogue.contexts[0].CurrentStep)
	assert.True(t, f.dialogue.contexts[0].CVReceived)

	require.Len(t, f.sender.sent, 2)
	assert.Contains(t, f.sender.sent[0].Body, "J'ai bien reçu votre CV")
	assert.Equal(t, "Première question ?", f.sender.sent[1].Body)
}

func TestProcess_MediaIngestionFailureKeepsStep(t *testing.T) {
	f := newFixture(t)
	f.resolver.resolution = &router.Resolution{JobID: "job-1", Candidate: f.candidates.candidate}
	f.ingestor.err = errors.New("unsupported media format")

	err := f.orch.Process(context.Background(), Inbound{
		From:       "whatsapp:+33612345678",
		MediaURL:   "https://api.twilio.com/media/ME123",
		MessageSID: "SM003",
	})
	require.NoError(t, err)

	assert.Empty(t, f.conversations.transcripts)
	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0].Body, "je n'ai pas pu traiter votre CV")
	assert.Contains(t, f.sender.sent[0].Body, "unsupported media format")
}

func TestProcess_MediaIgnoredWhenResumeAlreadyParsed(t *testing.T) {
	f := newFixture(t)
	f.candidates.candidate.CVData = &models.ParsedCV{Name: strPtr("Jane Doe")}
	f.resolver.resolution = &router.Resolution{JobID: "job-1", Candidate: f.candidates.candidate}

	err := f.orch.Process(context.Background(), Inbound{
		From:       "whatsapp:+33612345678",
		Body:       "voici mon CV à nouveau",
		MediaURL:   "https://api.twilio.com/media/ME124",
		MessageSID: "SM004",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, f.ingestor.calls)
	require.Len(t, f.conversations.transcripts, 1)
}

// ==========================
// Finalization Tests
// ==========================

func TestProcess_CompletionTriggersScoring(t *testing.T) {
	f := newFixture(t)
	f.candidates.candidate.CVData = &models.ParsedCV{Name: strPtr("Jane Doe")}
	f.resolver.resolution = &router.Resolution{JobID: "job-1", Candidate: f.candidates.candidate}
	f.conversations.conv.CurrentStep = models.StepQuestions
	f.dialogue.turn = &agent.Turn{
		Utterance: "Merci, vous recevrez une réponse bientôt.",
		NextStep:  models.StepCompleted,
		Complete:  true,
	}

	err := f.orch.Process(context.Background(), inboundText("Merci à vous !"))
	require.NoError(t, err)

	assert.Equal(t, 1, f.scorer.calls)
	assert.Equal(t, 1, f.candidates.scoreUpdates)
	assert.Equal(t, 82.5, f.candidates.savedScore)
	assert.Equal(t, "Résumé du candidat", f.candidates.savedSummary)
	require.Len(t, f.conversations.completedAts, 1)
	assert.NotNil(t, f.conversations.completedAts[0])
}

func TestProcess_AlreadyCompletedNeverRescores(t *testing.T) {
	f := newFixture(t)
	completedAt := time.Now().UTC()
	f.candidates.candidate.CVData = &models.ParsedCV{Name: strPtr("Jane Doe")}
	f.resolver.resolution = &router.Resolution{JobID: "job-1", Candidate: f.candidates.candidate}
	f.conversations.conv.CurrentStep = models.StepCompleted
	f.conversations.conv.CompletedAt = &completedAt
	f.dialogue.turn = &agent.Turn{
		Utterance: "Votre entretien est déjà terminé.",
		NextStep:  models.StepCompleted,
		Complete:  true,
	}

	err := f.orch.Process(context.Background(), inboundText("autre question"))
	require.NoError(t, err)

	assert.Equal(t, 0, f.scorer.calls)
	assert.Equal(t, 0, f.candidates.scoreUpdates)
}

func TestProcess_FinalizationRequiresResume(t *testing.T) {
	f := newFixture(t)
	f.resolver.resolution = &router.Resolution{JobID: "job-1", Candidate: f.candidates.candidate}
	f.conversations.conv.CurrentStep = models.StepQuestions
	f.dialogue.turn = &agent.Turn{
		Utterance: "Merci !",
		NextStep:  models.StepCompleted,
		Complete:  true,
	}

	err := f.orch.Process(context.Background(), inboundText("fini"))
	require.NoError(t, err)
	assert.Equal(t, 0, f.scorer.calls)
}

// ==========================
// Contact Capture Tests
// ==========================

func TestProcess_CapturesNameAtIntroStep(t *testing.T) {
	f := newFixture(t)
	f.resolver.resolution = &router.Resolution{JobID: "job-1", Candidate: f.candidates.candidate}

	err := f.orch.Process(context.Background(), inboundText("Jane Doe"))
	require.NoError(t, err)

	require.NotNil(t, f.candidates.contactName)
	assert.Equal(t, "Jane Doe", *f.candidates.contactName)
	assert.Nil(t, f.candidates.contactEmail)
}

func TestProcess_GreetingIsNotAName(t *testing.T) {
	f := newFixture(t)
	f.resolver.resolution = &router.Resolution{JobID: "job-1", Candidate: f.candidates.candidate}

	err := f.orch.Process(context.Background(), inboundText("Bonjour"))
	require.NoError(t, err)
	assert.Nil(t, f.candidates.contactName)
}

func TestProcess_CapturesEmailAtNameStep(t *testing.T) {
	f := newFixture(t)
	f.candidates.candidate.Name = strPtr("Jane Doe")
	f.resolver.resolution = &router.Resolution{JobID: "job-1", Candidate: f.candidates.candidate}
	f.conversations.conv.CurrentStep = models.StepName
	f.dialogue.turn = &agent.Turn{Utterance: "Envoyez votre CV.", NextStep: models.StepEmail}

	err := f.orch.Process(context.Background(), inboundText("jane@example.com"))
	require.NoError(t, err)

	require.NotNil(t, f.candidates.contactEmail)
	assert.Equal(t, "jane@example.com", *f.candidates.contactEmail)
}
