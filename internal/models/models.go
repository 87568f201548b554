// Package models defines the persisted entities of the screening engine.
package models

import "time"

// CandidateStatus is the lifecycle status of a candidate record.
type CandidateStatus string

const (
	StatusInProgress CandidateStatus = "IN_PROGRESS"
	StatusCompleted  CandidateStatus = "COMPLETED"
	StatusAccepted   CandidateStatus = "ACCEPTED"
	StatusRejected   CandidateStatus = "REJECTED"
)

// Step is a conversation state-machine state.
type Step string

const (
	StepIntro     Step = "intro"
	StepName      Step = "name"
	StepEmail     Step = "email"
	StepCV        Step = "cv"
	StepQuestions Step = "questions"
	StepWrapup    Step = "wrapup"
	StepCompleted Step = "completed"
)

// Criterion is a free-text job requirement. It is judged qualitatively by
// the scoring engine, never parsed structurally.
type Criterion struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Job is a read-only record owned by the management layer.
type Job struct {
	ID                 string      `json:"id"`
	OrgID              string      `json:"orgId"`
	OrgName            string      `json:"orgName"`
	Title              string      `json:"title"`
	Description        string      `json:"description"`
	EssentialCriteria  []Criterion `json:"essentialCriteria"`
	NiceToHaveCriteria []Criterion `json:"niceToHaveCriteria"`
	CreatedAt          time.Time   `json:"createdAt"`
}

// Candidate is one applicant's screening record for one job. The phone
// number is stored encrypted; PhoneHash is the lookup key.
type Candidate struct {
	ID             string          `json:"id"`
	JobID          string          `json:"jobId"`
	EncryptedPhone string          `json:"-"`
	PhoneHash      string          `json:"-"`
	Name           *string         `json:"name"`
	Email          *string         `json:"email"`
	CVData         *ParsedCV       `json:"cvData"`
	CVURL          *string         `json:"cvUrl"`
	Score          *float64        `json:"score"`
	ScoreDetails   []ScoreDetail   `json:"scoreDetails"`
	Summary        *string         `json:"summary"`
	Status         CandidateStatus `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Message is one transcript entry. Role is "candidate" or "agent".
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	RoleCandidate = "candidate"
	RoleAgent     = "agent"
)

// Conversation holds the append-only transcript and step state for one
// candidate, 1:1.
type Conversation struct {
	ID          string     `json:"id"`
	CandidateID string     `json:"candidateId"`
	Messages    []Message  `json:"messages"`
	CurrentStep Step       `json:"currentStep"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Completed reports whether the interview has finished.
func (c *Conversation) Completed() bool {
	return c.CompletedAt != nil
}

// CandidateReplies returns the candidate-role transcript contents in order.
func (c *Conversation) CandidateReplies() []string {
	var replies []string
	for _, m := range c.Messages {
		if m.Role == RoleCandidate {
			replies = append(replies, m.Content)
		}
	}
	return replies
}

// ExperienceEntry is one past role on a parsed résumé.
type ExperienceEntry struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Duration    string `json:"duration"`
	Description string `json:"description"`
}

// ParsedCV is the structured extraction of a résumé. Absent fields are
// explicit nulls or empty lists, never omitted keys.
type ParsedCV struct {
	Name              *string           `json:"name"`
	Email             *string           `json:"email"`
	Phone             *string           `json:"phone"`
	YearsOfExperience *float64          `json:"yearsOfExperience"`
	CurrentPosition   *string           `json:"currentPosition"`
	CurrentCompany    *string           `json:"currentCompany"`
	Skills            []string          `json:"skills"`
	Languages         []string          `json:"languages"`
	Education         []string          `json:"education"`
	Experience        []ExperienceEntry `json:"experience"`
}

// CriterionStatus is the qualitative judgment for one criterion.
type CriterionStatus string

const (
	StatusExcellent    CriterionStatus = "excellent"
	StatusGood         CriterionStatus = "good"
	StatusPartial      CriterionStatus = "partial"
	StatusInsufficient CriterionStatus = "insufficient"
)

// ScoreDetail is the per-criterion judgment produced once at finalization.
type ScoreDetail struct {
	Criterion string          `json:"criterion"`
	Status    CriterionStatus `json:"status"`
	Evidence  string          `json:"evidence"`
	Points    float64         `json:"points"`
	Marker    string          `json:"emoji"`
}

// ScoringResult is the aggregate output of a finalization run.
type ScoringResult struct {
	Score          float64       `json:"score"`
	Details        []ScoreDetail `json:"details"`
	Recommendation string        `json:"recommendation"`
}
