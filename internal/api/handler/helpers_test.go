package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/anonychat/anonychat-api/internal/core/domain"
	"github.com/anonychat/anonychat-api/internal/core/ports"
)

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	e.JSONSerializer = StrictJSONSerializer{}
	return e
}

func newContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// withIdentity simulates the Auth middleware.
func withIdentity(c echo.Context, id domain.Identity) echo.Context {
	c.Set("identity", id)
	c.Set("account_id", id.ID)
	return c
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v (%s)", err, rec.Body.String())
	}
	return resp
}

func expectHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError %d, got %v", code, err)
	}
	if he.Code != code {
		t.Fatalf("expected status %d, got %d (%v)", code, he.Code, he.Message)
	}
}

func expectErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

var alice = domain.Identity{ID: "acc1", Username: "alice", IsVerified: true, IsAcceptingMessage: true}

// ---------------------------------------------------------------------------
// Service stubs
// ---------------------------------------------------------------------------

type stubAccountService struct {
	registerFn    func(ctx context.Context, in ports.RegisterInput) (*domain.Account, error)
	eligibilityFn func(ctx context.Context, username string) (ports.Eligibility, error)
	availableFn   func(ctx context.Context, username string) error
	acceptingFn   func(ctx context.Context, accountID string) (bool, error)
	setFn         func(ctx context.Context, accountID string, accept bool) (bool, error)
}

func (s *stubAccountService) Register(ctx context.Context, in ports.RegisterInput) (*domain.Account, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAccountService) CheckEligibility(ctx context.Context, username string) (ports.Eligibility, error) {
	return s.eligibilityFn(ctx, username)
}

func (s *stubAccountService) CheckUsernameAvailable(ctx context.Context, username string) error {
	return s.availableFn(ctx, username)
}

func (s *stubAccountService) AcceptingMessages(ctx context.Context, accountID string) (bool, error) {
	return s.acceptingFn(ctx, accountID)
}

func (s *stubAccountService) SetAcceptingMessages(ctx context.Context, accountID string, accept bool) (bool, error) {
	return s.setFn(ctx, accountID, accept)
}

type stubMessageService struct {
	deliverFn func(ctx context.Context, in ports.DeliverInput) (*domain.Message, error)
	listFn    func(ctx context.Context, accountID string) ([]domain.Message, error)
	deleteFn  func(ctx context.Context, accountID, messageID string) error
}

func (s *stubMessageService) Deliver(ctx context.Context, in ports.DeliverInput) (*domain.Message, error) {
	return s.deliverFn(ctx, in)
}

func (s *stubMessageService) List(ctx context.Context, accountID string) ([]domain.Message, error) {
	return s.listFn(ctx, accountID)
}

func (s *stubMessageService) Delete(ctx context.Context, accountID, messageID string) error {
	return s.deleteFn(ctx, accountID, messageID)
}

type stubSessionService struct {
	authFn  func(ctx context.Context, identifier, password string) (*ports.Session, error)
	parseFn func(token string) (domain.Identity, error)
}

func (s *stubSessionService) Authenticate(ctx context.Context, identifier, password string) (*ports.Session, error) {
	return s.authFn(ctx, identifier, password)
}

func (s *stubSessionService) ParseToken(token string) (domain.Identity, error) {
	return s.parseFn(token)
}

type stubVerificationService struct {
	verifyFn  func(ctx context.Context, username, code string) error
	resendFn  func(ctx context.Context, username, email string) error
	requestFn func(ctx context.Context, identifier string) error
	resetFn   func(ctx context.Context, in ports.ResetPasswordInput) error
}

func (s *stubVerificationService) IssueCode(context.Context, *domain.Account, domain.CodePurpose) error {
	return nil
}

func (s *stubVerificationService) VerifyEmail(ctx context.Context, username, code string) error {
	return s.verifyFn(ctx, username, code)
}

func (s *stubVerificationService) ResendVerification(ctx context.Context, username, email string) error {
	return s.resendFn(ctx, username, email)
}

func (s *stubVerificationService) RequestPasswordReset(ctx context.Context, identifier string) error {
	return s.requestFn(ctx, identifier)
}

func (s *stubVerificationService) ResetPassword(ctx context.Context, in ports.ResetPasswordInput) error {
	return s.resetFn(ctx, in)
}

type stubInsightService struct {
	suggestFn   func(ctx context.Context) ([]string, error)
	summarizeFn func(ctx context.Context, accountID string) (string, error)
}

func (s *stubInsightService) SuggestMessages(ctx context.Context) ([]string, error) {
	return s.suggestFn(ctx)
}

func (s *stubInsightService) SummarizeMessages(ctx context.Context, accountID string) (string, error) {
	return s.summarizeFn(ctx, accountID)
}

func errorsIs(err, target error) bool { return errors.Is(err, target) }

func asHTTPError(err error) (*echo.HTTPError, bool) {
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	return he, ok
}
