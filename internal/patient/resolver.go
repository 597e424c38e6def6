package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hackgods/praxis-scheduling/internal/apperr"
	"github.com/hackgods/praxis-scheduling/internal/directory"
)

type Type string

const (
	TypeNew       Type = "new"
	TypeReturning Type = "returning"
)

var (
	ErrNameAndDOBRequired = apperr.Validation("name_and_dob_required", "Full name and date of birth are required")
	ErrIncompleteName     = apperr.Validation("incomplete_name", "Please provide both first and last name")
)

// Finder is the slice of the directory the resolver reads.
type Finder interface {
	FindPatient(ctx context.Context, given, family, dob string) (directory.Patient, bool, error)
}

type LookupRequest struct {
	FullName    string `json:"fullName"`
	DateOfBirth string `json:"dateOfBirth" validate:"required"`
	// GivenName and FamilyName, when both present, replace FullName parsing.
	GivenName  string `json:"givenName,omitempty"`
	FamilyName string `json:"familyName,omitempty"`
}

// Summary is the redacted projection returned to the booking wizard.
type Summary struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type LookupResult struct {
	PatientType Type     `json:"patientType"`
	Patient     *Summary `json:"patient,omitempty"`
}

type Resolver struct {
	finder   Finder
	validate *validator.Validate
}

func NewResolver(finder Finder, validate *validator.Validate) *Resolver {
	if validate == nil {
		validate = apperr.NewValidator()
	}
	return &Resolver{finder: finder, validate: validate}
}

// Lookup classifies the requester as new or returning.
func (r *Resolver) Lookup(ctx context.Context, req LookupRequest) (LookupResult, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.DateOfBirth = strings.TrimSpace(req.DateOfBirth)

	if err := r.validate.StructCtx(ctx, req); err != nil {
		return LookupResult{}, ErrNameAndDOBRequired.Wrap(err)
	}

	given, family, err := splitName(req)
	if err != nil {
		return LookupResult{}, err
	}

	p, ok, err := r.finder.FindPatient(ctx, given, family, req.DateOfBirth)
	if err != nil {
		return LookupResult{}, fmt.Errorf("find patient: %w", err)
	}
	if !ok {
		return LookupResult{PatientType: TypeNew}, nil
	}

	return LookupResult{
		PatientType: TypeReturning,
		Patient: &Summary{
			ID:        p.ID,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Email:     p.Email,
			Phone:     p.Phone,
		},
	}, nil
}

// splitName takes the first whitespace token as the given name and the last
// as the family name. Middle names are dropped; callers that need them must
// send structured names.
func splitName(req LookupRequest) (given, family string, err error) {
	given = strings.TrimSpace(req.GivenName)
	family = strings.TrimSpace(req.FamilyName)
	if given != "" && family != "" {
		return given, family, nil
	}

	if req.FullName == "" {
		return "", "", ErrNameAndDOBRequired
	}
	parts := strings.Fields(req.FullName)
	if len(parts) < 2 {
		return "", "", ErrIncompleteName
	}
	return parts[0], parts[len(parts)-1], nil
}
