package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mf-eats-backend/internal/events"
	"mf-eats-backend/internal/models"
	"mf-eats-backend/pkg/logger"
	"mf-eats-backend/pkg/token"

	"golang.org/x/crypto/bcrypt"
)

// ServiceInterface is the identity and role-resolution contract the rest of
// the system trusts. Resolve is a pure read; the mutating operations all
// publish an auth-change event so dependents re-resolve instead of caching.
type ServiceInterface interface {
	Signup(ctx context.Context, req models.SignupRequest) (*models.SessionResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.SessionResponse, error)
	SignOut(ctx context.Context, userID string)
	// Resolve answers: who is this, and what may they do. Absence of a
	// user or of a role row is a normal outcome, never an error; only
	// transport failures return ErrResolutionFailed.
	Resolve(ctx context.Context, src models.AuthSource) (models.Resolution, error)
	// GrantElevated issues an admin-override grant for a principal whose
	// role row says admin. The grant is its own channel and outranks the
	// standard session at resolution time.
	GrantElevated(ctx context.Context, userID string) (string, error)
	AssignRole(ctx context.Context, userID string, role models.Role) error
	Profile(ctx context.Context, userID string) (*models.Profile, error)
	// Subscribe exposes the auth-change stream (login, logout, role
	// reassignment). Consumers re-run Resolve on every event.
	Subscribe() (<-chan events.Event, func())
}

// Service implements ServiceInterface.
type Service struct {
	repo       RepositoryInterface
	bus        *events.Bus
	log        *logger.Logger
	jwtSecret  string
	jwtIssuer  string
	sessionTTL time.Duration
}

func NewService(repo RepositoryInterface, bus *events.Bus, log *logger.Logger, jwtSecret, jwtIssuer string, sessionTTL time.Duration) *Service {
	return &Service{
		repo:       repo,
		bus:        bus,
		log:        log,
		jwtSecret:  jwtSecret,
		jwtIssuer:  jwtIssuer,
		sessionTTL: sessionTTL,
	}
}

// Signup registers a profile (optionally with a role) and opens a session.
func (s *Service) Signup(ctx context.Context, req models.SignupRequest) (*models.SessionResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("service.Signup: hash password: %w", err)
	}

	p := &models.Profile{FullName: req.FullName, Email: req.Email, Phone: req.Phone}
	if err := s.repo.CreateProfile(ctx, p, string(hash), req.Role); err != nil {
		return nil, fmt.Errorf("service.Signup: %w", err)
	}

	return s.openSession(p.ID, req.Role)
}

// Login authenticates over the standard channel. The role is re-read from
// the store, not taken from any previous token.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.SessionResponse, error) {
	p, hash, err := s.repo.FindCredentialsByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("service.Login: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		return nil, models.ErrInvalidCredentials
	}

	role, err := s.repo.FindRole(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("service.Login: %w", err)
	}
	return s.openSession(p.ID, role)
}

func (s *Service) openSession(userID string, role models.Role) (*models.SessionResponse, error) {
	tok, err := token.IssueSession(s.jwtSecret, userID, string(role), s.jwtIssuer, s.sessionTTL)
	if err != nil {
		return nil, fmt.Errorf("service.openSession: %w", err)
	}
	s.bus.Publish(events.Event{Topic: events.TopicAuthChanged, Key: userID})
	return &models.SessionResponse{
		Token: tok,
		Resolution: models.Resolution{
			Authenticated: true,
			PrincipalID:   userID,
			Role:          role,
			Source:        models.AuthStandard,
		},
	}, nil
}

// SignOut only announces the change; token invalidation is the client
// discarding it. Other tabs react through the auth-change stream.
func (s *Service) SignOut(ctx context.Context, userID string) {
	s.bus.Publish(events.Event{Topic: events.TopicAuthChanged, Key: userID})
}

// Resolve implements the precedence rule between the two channels: a valid
// elevated grant asserts admin and wins outright; the standard session's
// role is always re-derived from the role row, never trusted from the
// token, so an out-of-band reassignment takes effect on the next request.
func (s *Service) Resolve(ctx context.Context, src models.AuthSource) (models.Resolution, error) {
	if src.Token == "" {
		return models.Resolution{}, nil
	}

	claims, err := token.Parse(s.jwtSecret, src.Token)
	if err != nil {
		// An expired or garbage token is "no user", not a failure.
		return models.Resolution{}, nil
	}

	if src.Kind == models.AuthElevated {
		if claims.Source != token.SourceElevated || claims.Role != string(models.RoleAdmin) {
			return models.Resolution{}, nil
		}
		return models.Resolution{
			Authenticated: true,
			PrincipalID:   claims.UserID,
			Role:          models.RoleAdmin,
			Source:        models.AuthElevated,
		}, nil
	}

	if _, err := s.repo.FindProfileByID(ctx, claims.UserID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.Resolution{}, nil
		}
		return models.Resolution{}, fmt.Errorf("%w: %v", models.ErrResolutionFailed, err)
	}

	role, err := s.repo.FindRole(ctx, claims.UserID)
	if err != nil {
		return models.Resolution{}, fmt.Errorf("%w: %v", models.ErrResolutionFailed, err)
	}

	return models.Resolution{
		Authenticated: true,
		PrincipalID:   claims.UserID,
		Role:          role,
		Source:        models.AuthStandard,
	}, nil
}

func (s *Service) GrantElevated(ctx context.Context, userID string) (string, error) {
	role, err := s.repo.FindRole(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("service.GrantElevated: %w", err)
	}
	if role != models.RoleAdmin {
		s.log.Warn().Str("user_id", userID).Msg("elevated grant refused: principal is not admin")
		return "", models.ErrUnauthorized
	}
	grant, err := token.IssueElevatedGrant(s.jwtSecret, userID, s.jwtIssuer, s.sessionTTL)
	if err != nil {
		return "", fmt.Errorf("service.GrantElevated: %w", err)
	}
	return grant, nil
}

// AssignRole is the admin out-of-band reassignment. Resolvers pick it up on
// the next Resolve because roles are never cached.
func (s *Service) AssignRole(ctx context.Context, userID string, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("service.AssignRole: unknown role %q", role)
	}
	if err := s.repo.UpsertRole(ctx, userID, role); err != nil {
		return fmt.Errorf("service.AssignRole: %w", err)
	}
	s.bus.Publish(events.Event{Topic: events.TopicAuthChanged, Key: userID})
	return nil
}

func (s *Service) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	return s.repo.FindProfileByID(ctx, userID)
}

func (s *Service) Subscribe() (<-chan events.Event, func()) {
	return s.bus.Subscribe(events.TopicAuthChanged)
}
