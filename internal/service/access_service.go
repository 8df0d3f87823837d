package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

// Outcome is the result of checking a session against a role-restricted view.
type Outcome string

const (
	OutcomeGranted         Outcome = "granted"
	OutcomeUnauthenticated Outcome = "unauthenticated"
	OutcomeUnregistered    Outcome = "unregistered"
	OutcomePending         Outcome = "pending"
	OutcomeDeclined        Outcome = "declined"
	OutcomeForbidden       Outcome = "forbidden"
)

// Redirect targets for refused decisions.
const (
	RedirectLogin        = "/login"
	RedirectRegistration = "/registration"
	RedirectPending      = "/registration/pending"
	RedirectDeclined     = "/registration/declined"
)

// AccessState is what every protected view knows about the caller. Role is
// only populated once the registration is approved.
type AccessState struct {
	Authenticated bool                      `json:"authenticated"`
	AccountID     string                    `json:"accountId,omitempty"`
	Status        models.RegistrationStatus `json:"status,omitempty"`
	Role          models.Role               `json:"role,omitempty"`
	Registration  *models.Registration      `json:"-"`
}

// Decision pairs an outcome with the page a refused caller is sent to.
type Decision struct {
	Outcome  Outcome `json:"outcome"`
	Redirect string  `json:"redirect,omitempty"`
}

// Granted reports whether the view may be served.
func (d Decision) Granted() bool {
	return d.Outcome == OutcomeGranted
}

// Err maps a refused decision to its API error.
func (d Decision) Err() *appErrors.Error {
	switch d.Outcome {
	case OutcomeGranted:
		return nil
	case OutcomeUnauthenticated:
		return appErrors.ErrUnauthorized
	case OutcomeUnregistered:
		return appErrors.Clone(appErrors.ErrForbidden, "no registration on file for this account")
	case OutcomePending:
		return appErrors.ErrRegistrationPending
	case OutcomeDeclined:
		return appErrors.ErrRegistrationDeclined
	default:
		return appErrors.ErrForbidden
	}
}

type registrationLookup interface {
	FindByAccountID(ctx context.Context, accountID string) (*models.Registration, error)
}

// AccessService derives the session gate state.
type AccessService struct {
	registrations registrationLookup
	logger        *zap.Logger
}

// NewAccessService constructs an AccessService.
func NewAccessService(registrations registrationLookup, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{registrations: registrations, logger: logger}
}

// Resolve loads the registration behind the session. Nil claims resolve to an
// unauthenticated state.
func (s *AccessService) Resolve(ctx context.Context, claims *models.JWTClaims) (AccessState, error) {
	if claims == nil || claims.UserID == "" {
		return AccessState{}, nil
	}
	state := AccessState{Authenticated: true, AccountID: claims.UserID}

	reg, err := s.registrations.FindByAccountID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return state, nil
		}
		s.logger.Error("failed to load registration for access check", zap.String("account_id", claims.UserID), zap.Error(err))
		return AccessState{}, appErrors.Remote(err, "failed to load registration")
	}
	state.Status = reg.Status
	state.Registration = reg
	if reg.Status == models.RegistrationApproved {
		state.Role = reg.Role
	}
	return state, nil
}

// Decide checks state against the allowed roles. No roles means any approved role.
func Decide(state AccessState, allowed ...models.Role) Decision {
	if !state.Authenticated {
		return Decision{Outcome: OutcomeUnauthenticated, Redirect: RedirectLogin}
	}
	switch state.Status {
	case models.RegistrationApproved:
	case models.RegistrationPending:
		return Decision{Outcome: OutcomePending, Redirect: RedirectPending}
	case models.RegistrationDeclined:
		return Decision{Outcome: OutcomeDeclined, Redirect: RedirectDeclined}
	default:
		return Decision{Outcome: OutcomeUnregistered, Redirect: RedirectRegistration}
	}
	if len(allowed) > 0 && !models.HasRole(allowed, state.Role) {
		return Decision{Outcome: OutcomeForbidden, Redirect: DashboardPath(state.Role)}
	}
	return Decision{Outcome: OutcomeGranted}
}

// DashboardPath is the landing page of an approved role.
func DashboardPath(role models.Role) string {
	return "/dashboards/" + string(role)
}
