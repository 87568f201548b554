// Package router resolves an inbound message to a job: by short code when
// the body carries one, otherwise by the sender's hashed phone number.
package router

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"screening-engine/internal/models"
	"screening-engine/internal/store"
)

// ErrNoJobResolved is returned when neither the code path nor the phone
// path yields a job. The caller must short-circuit with a guidance
// message instead of creating a dangling candidate.
var ErrNoJobResolved = errors.New("NO_JOB_RESOLVED")

var codePattern = regexp.MustCompile(`CODE-([A-Z0-9]{6})`)

// CodeResolver maps a short code to a job id.
type CodeResolver interface {
	ResolveJob(ctx context.Context, code string) (string, error)
}

// CandidateFinder looks up an open candidacy by phone hash.
type CandidateFinder interface {
	FindOpenByPhoneHash(ctx context.Context, phoneHash string) (*models.Candidate, error)
}

// Hasher produces the lookup digest for a phone number.
type Hasher interface {
	HashPhone(phone string) string
}

// Resolution is the router's answer: which job the message belongs to
// and, on the phone path, the already-known candidate.
type Resolution struct {
	JobID     string
	Candidate *models.Candidate
}

type Router struct {
	codes      CodeResolver
	candidates CandidateFinder
	hasher     Hasher
}

func New(codes CodeResolver, candidates CandidateFinder, hasher Hasher) *Router {
	return &Router{codes: codes, candidates: candidates, hasher: hasher}
}

// Resolve tries the code path, then the phone path. Codes are routing
// hints only: the same code may start any number of candidacies.
func (r *Router) Resolve(ctx context.Context, phone, body string) (*Resolution, error) {
	if code := ExtractCode(body); code != "" {
		jobID, err := r.codes.ResolveJob(ctx, code)
		if err == nil {
			return &Resolution{JobID: jobID}, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		// Unknown code: fall through to the phone path so an in-flight
		// interview is not derailed by a typo.
	}

	candidate, err := r.candidates.FindOpenByPhoneHash(ctx, r.hasher.HashPhone(phone))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoJobResolved
		}
		return nil, err
	}

	return &Resolution{JobID: candidate.JobID, Candidate: candidate}, nil
}

// ExtractCode pulls the first short code out of a message body, or
// returns "" when none is present.
func ExtractCode(body string) string {
	match := codePattern.FindStringSubmatch(strings.ToUpper(body))
	if match == nil {
		return ""
	}
	return match[1]
}
