package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"mf-eats-backend/internal/events"
	"mf-eats-backend/internal/models"
	"mf-eats-backend/pkg/logger"
	"mf-eats-backend/pkg/token"

	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret = "test-secret"
	testIssuer = "mf-eats-test"
)

// fakeRepo mimics the real repository over in-memory maps. Setting failWith
// makes every store call fail, standing in for a database outage.
type fakeRepo struct {
	profiles map[string]*models.Profile
	hashes   map[string]string // keyed by email
	roles    map[string]models.Role
	failWith error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		profiles: make(map[string]*models.Profile),
		hashes:   make(map[string]string),
		roles:    make(map[string]models.Role),
	}
}

func (f *fakeRepo) CreateProfile(ctx context.Context, p *models.Profile, passwordHash string, role models.Role) error {
	if f.failWith != nil {
		return f.failWith
	}
	for _, existing := range f.profiles {
		if existing.Email == p.Email {
			return models.ErrEmailTaken
		}
	}
	p.ID = "user-" + p.Email
	cp := *p
	f.profiles[p.ID] = &cp
	f.hashes[p.Email] = passwordHash
	if role != "" {
		f.roles[p.ID] = role
	}
	return nil
}

func (f *fakeRepo) FindProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) FindCredentialsByEmail(ctx context.Context, email string) (*models.Profile, string, error) {
	if f.failWith != nil {
		return nil, "", f.failWith
	}
	for _, p := range f.profiles {
		if p.Email == email {
			cp := *p
			return &cp, f.hashes[email], nil
		}
	}
	return nil, "", models.ErrNotFound
}

func (f *fakeRepo) FindRole(ctx context.Context, userID string) (models.Role, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	return f.roles[userID], nil
}

func (f *fakeRepo) UpsertRole(ctx context.Context, userID string, role models.Role) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.roles[userID] = role
	return nil
}

func newTestService(repo *fakeRepo) *Service {
	log := logger.New(logger.Config{Env: "test", Level: "error"})
	return NewService(repo, events.NewBus(), log, testSecret, testIssuer, time.Hour)
}

func seedUser(t *testing.T, repo *fakeRepo, email, password string, role models.Role) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	p := &models.Profile{FullName: "Test User", Email: email}
	if err := repo.CreateProfile(context.Background(), p, string(hash), role); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return p.ID
}

func TestResolveNoTokenIsAnonymous(t *testing.T) {
	svc := newTestService(newFakeRepo())

	res, err := svc.Resolve(context.Background(), models.AuthSource{Kind: models.AuthStandard})
	if err != nil {
		t.Fatalf("Resolve: unexpected error %v", err)
	}
	if res.Authenticated {
		t.Fatal("Resolve: empty token must resolve to unauthenticated")
	}
}

func TestResolveGarbageTokenIsAnonymous(t *testing.T) {
	svc := newTestService(newFakeRepo())

	res, err := svc.Resolve(context.Background(), models.AuthSource{
		Kind:  models.AuthStandard,
		Token: "not-a-jwt",
	})
	if err != nil {
		t.Fatalf("Resolve: a malformed token is not a failure, got %v", err)
	}
	if res.Authenticated {
		t.Fatal("Resolve: malformed token must resolve to unauthenticated")
	}
}

func TestResolveRereadsRoleFromStore(t *testing.T) {
	repo := newFakeRepo()
	userID := seedUser(t, repo, "a@example.com", "pw", models.RoleClient)
	svc := newTestService(repo)

	tok, err := token.IssueSession(testSecret, userID, "client", testIssuer, time.Hour)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	// Reassign out of band; the session token still says client.
	repo.roles[userID] = models.RoleDriver

	res, err := svc.Resolve(context.Background(), models.AuthSource{Kind: models.AuthStandard, Token: tok})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Role != models.RoleDriver {
		t.Fatalf("Resolve: role = %q, want the store's current role %q", res.Role, models.RoleDriver)
	}
}

func TestResolveAuthenticatedWithoutRole(t *testing.T) {
	repo := newFakeRepo()
	userID := seedUser(t, repo, "b@example.com", "pw", "")
	svc := newTestService(repo)

	tok, _ := token.IssueSession(testSecret, userID, "", testIssuer, time.Hour)

	res, err := svc.Resolve(context.Background(), models.AuthSource{Kind: models.AuthStandard, Token: tok})
	if err != nil {
		t.Fatalf("Resolve: no role row is a normal state, got %v", err)
	}
	if !res.Authenticated || res.Role != "" {
		t.Fatalf("Resolve: got %+v, want authenticated with empty role", res)
	}
}

func TestResolveStoreOutageIsResolutionFailed(t *testing.T) {
	repo := newFakeRepo()
	userID := seedUser(t, repo, "c@example.com", "pw", models.RoleClient)
	svc := newTestService(repo)

	tok, _ := token.IssueSession(testSecret, userID, "client", testIssuer, time.Hour)
	repo.failWith = errors.New("connection refused")

	_, err := svc.Resolve(context.Background(), models.AuthSource{Kind: models.AuthStandard, Token: tok})
	if !errors.Is(err, models.ErrResolutionFailed) {
		t.Fatalf("Resolve: err = %v, want ErrResolutionFailed", err)
	}
}

func TestResolveElevatedGrantWins(t *testing.T) {
	repo := newFakeRepo()
	userID := seedUser(t, repo, "admin@example.com", "pw", models.RoleAdmin)
	svc := newTestService(repo)

	grant, err := svc.GrantElevated(context.Background(), userID)
	if err != nil {
		t.Fatalf("GrantElevated: %v", err)
	}

	// Even if the role row changes afterwards, the grant still asserts
	// admin for its lifetime. It is also resolved without touching the
	// store at all.
	repo.failWith = errors.New("store is down")

	res, err := svc.Resolve(context.Background(), models.AuthSource{Kind: models.AuthElevated, Token: grant})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Authenticated || res.Role != models.RoleAdmin || res.Source != models.AuthElevated {
		t.Fatalf("Resolve: got %+v, want elevated admin", res)
	}
}

func TestResolveRejectsSessionOnElevatedChannel(t *testing.T) {
	repo := newFakeRepo()
	userID := seedUser(t, repo, "d@example.com", "pw", models.RoleClient)
	svc := newTestService(repo)

	// A standard session presented as an elevated grant must not escalate.
	tok, _ := token.IssueSession(testSecret, userID, "client", testIssuer, time.Hour)

	res, err := svc.Resolve(context.Background(), models.AuthSource{Kind: models.AuthElevated, Token: tok})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Authenticated {
		t.Fatal("Resolve: a session token must not pass as an elevated grant")
	}
}

func TestGrantElevatedRefusedForNonAdmin(t *testing.T) {
	repo := newFakeRepo()
	userID := seedUser(t, repo, "e@example.com", "pw", models.RoleClient)
	svc := newTestService(repo)

	if _, err := svc.GrantElevated(context.Background(), userID); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("GrantElevated: err = %v, want ErrUnauthorized", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newFakeRepo()
	seedUser(t, repo, "f@example.com", "right", models.RoleClient)
	svc := newTestService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "f@example.com", Password: "wrong"})
	if !errors.Is(err, models.ErrInvalidCredentials) {
		t.Fatalf("Login: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := newTestService(newFakeRepo())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "pw"})
	if !errors.Is(err, models.ErrInvalidCredentials) {
		t.Fatalf("Login: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	repo := newFakeRepo()
	seedUser(t, repo, "dup@example.com", "pw", models.RoleClient)
	svc := newTestService(repo)

	_, err := svc.Signup(context.Background(), models.SignupRequest{
		FullName: "Second",
		Email:    "dup@example.com",
		Password: "pw",
		Role:     models.RoleClient,
	})
	if !errors.Is(err, models.ErrEmailTaken) {
		t.Fatalf("Signup: err = %v, want ErrEmailTaken", err)
	}
}

func TestSignupPublishesAuthChange(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	ch, cancel := svc.Subscribe()
	defer cancel()

	session, err := svc.Signup(context.Background(), models.SignupRequest{
		FullName: "New User",
		Email:    "new@example.com",
		Password: "pw",
		Role:     models.RoleClient,
	})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Key != session.Resolution.PrincipalID {
			t.Fatalf("auth change key = %q, want %q", ev.Key, session.Resolution.PrincipalID)
		}
	case <-time.After(time.Second):
		t.Fatal("Signup: no auth-change event published")
	}
}
