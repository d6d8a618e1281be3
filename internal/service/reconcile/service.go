// Package reconcile resolves a printed lot code back to the production
// run, recipe, and operator that produced it. The code itself is lossy,
// so resolution combines an exact run lookup with initial-based
// candidate lists.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/forno-labs/forno-go/internal/domain"
	"github.com/forno-labs/forno-go/internal/lot"
	"github.com/forno-labs/forno-go/internal/repo"
)

var ErrInvalidLotCode = errors.New("invalid lot code")

const (
	// instantTolerance absorbs the sub-minute truncation of the codec and
	// small clock drift between the label printer and the database.
	instantTolerance = time.Minute

	maxCandidates = 10
)

type Candidate struct {
	ID   string
	Name string
}

// Resolution is everything that can be recovered from a lot code. Run,
// RecipeName, and UserName are set only when exactly one completed run
// matches both decoded instants; each candidate list is populated from
// the initials only when the corresponding exact name stayed empty.
type Resolution struct {
	Decoded          lot.Data
	Run              *domain.ProductionRun
	RecipeName       string
	UserName         string
	CandidateRecipes []Candidate
	CandidateUsers   []Candidate
}

type Service struct {
	recipes   repo.RecipeReader
	users     repo.UserReader
	snapshots repo.SnapshotRepository
	runs      repo.RunRepository
}

func New(recipes repo.RecipeReader, users repo.UserReader, snapshots repo.SnapshotRepository, runs repo.RunRepository) *Service {
	if recipes == nil || users == nil || snapshots == nil || runs == nil {
		return nil
	}
	return &Service{
		recipes:   recipes,
		users:     users,
		snapshots: snapshots,
		runs:      runs,
	}
}

// Resolve decodes the code and tries to pin it to a single run. A code
// that fails the syntactic or segment checks yields ErrInvalidLotCode;
// a well-formed code that matches nothing still resolves, with only the
// decoded tuple and candidate lists filled in.
func (s *Service) Resolve(ctx context.Context, code string) (Resolution, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !lot.IsValidFormat(code) {
		return Resolution{}, fmt.Errorf("%w: %q", ErrInvalidLotCode, code)
	}
	decoded, ok := lot.Decode(code)
	if !ok {
		return Resolution{}, fmt.Errorf("%w: %q", ErrInvalidLotCode, code)
	}

	resolution := Resolution{Decoded: decoded}

	run, err := s.runs.FindCompletedInWindow(ctx, repo.CompletedRunWindow{
		StartedFrom:  decoded.StartedAt.Add(-instantTolerance),
		StartedTo:    decoded.StartedAt.Add(instantTolerance),
		FinishedFrom: decoded.FinishedAt.Add(-instantTolerance),
		FinishedTo:   decoded.FinishedAt.Add(instantTolerance),
	})
	switch {
	case err == nil:
		resolution.Run = &run
		if snapshot, snapErr := s.snapshots.GetSnapshot(ctx, run.RecipeVersionID); snapErr == nil {
			resolution.RecipeName = snapshot.Name
		}
		if user, userErr := s.users.GetUser(ctx, run.UserID); userErr == nil {
			resolution.UserName = user.OperatorName()
		}
	case errors.Is(err, repo.ErrNotFound):
		// No exact run; the candidate lists below are the whole answer.
	default:
		return Resolution{}, err
	}

	if resolution.RecipeName == "" {
		recipeCandidates, err := s.recipeCandidates(ctx, decoded.RecipeInitials)
		if err != nil {
			return Resolution{}, err
		}
		resolution.CandidateRecipes = recipeCandidates
	}
	if resolution.UserName == "" {
		userCandidates, err := s.userCandidates(ctx, decoded.UserInitials)
		if err != nil {
			return Resolution{}, err
		}
		resolution.CandidateUsers = userCandidates
	}
	return resolution, nil
}

func (s *Service) recipeCandidates(ctx context.Context, initials string) ([]Candidate, error) {
	recipes, err := s.recipes.ListRecipes(ctx, repo.RecipeFilter{})
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	out := make([]Candidate, 0, maxCandidates)
	for _, recipe := range recipes {
		if lot.Initials(recipe.Name) != initials {
			continue
		}
		out = append(out, Candidate{ID: recipe.ID, Name: recipe.Name})
		if len(out) == maxCandidates {
			break
		}
	}
	return out, nil
}

func (s *Service) userCandidates(ctx context.Context, initials string) ([]Candidate, error) {
	users, err := s.users.ListUsers(ctx, repo.UserFilter{})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]Candidate, 0, maxCandidates)
	for _, user := range users {
		name := user.OperatorName()
		if lot.Initials(name) != initials {
			continue
		}
		out = append(out, Candidate{ID: user.ID, Name: name})
		if len(out) == maxCandidates {
			break
		}
	}
	return out, nil
}
