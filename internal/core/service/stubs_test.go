package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/anonychat/anonychat-api/internal/core/domain"
	"github.com/anonychat/anonychat-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory account repository mirroring the Mongo queries.
// ---------------------------------------------------------------------------

type stubAccountRepo struct {
	mu       sync.Mutex
	byID     map[string]*domain.Account
	nextID   int
	nextMsg  int
	findErr  error // if set, every Find* returns it
	redeemFn func(id, code string) error
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{byID: make(map[string]*domain.Account)}
}

func cloneAccount(a *domain.Account) *domain.Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Messages = append([]domain.Message(nil), a.Messages...)
	return &c
}

func (r *stubAccountRepo) seed(a *domain.Account) *domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == "" {
		r.nextID++
		a.ID = "acc" + strconv.Itoa(r.nextID)
	}
	r.byID[a.ID] = cloneAccount(a)
	return cloneAccount(a)
}

func (r *stubAccountRepo) find(match func(a *domain.Account) bool) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, a := range r.byID {
		if match(a) {
			return cloneAccount(a), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *stubAccountRepo) clash(id, username, email string) error {
	for _, a := range r.byID {
		if a.ID == id {
			continue
		}
		if domain.FoldUsername(a.Username) == domain.FoldUsername(username) {
			return domain.ErrUsernameTaken
		}
		if email != "" && a.Email == email {
			return domain.ErrEmailTaken
		}
	}
	return nil
}

func (r *stubAccountRepo) Create(_ context.Context, a *domain.Account) (*domain.Account, error) {
	r.mu.Lock()
	if err := r.clash("", a.Username, a.Email); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.mu.Unlock()
	return r.seed(cloneAccount(a)), nil
}

func (r *stubAccountRepo) FindByID(_ context.Context, id string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return a.ID == id })
}

func (r *stubAccountRepo) FindByUsername(_ context.Context, username string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return a.Username == username })
}

func (r *stubAccountRepo) FindByUsernameFold(_ context.Context, username string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return strings.EqualFold(a.Username, username) })
}

func (r *stubAccountRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return a.Email == email })
}

func (r *stubAccountRepo) FindByIdentifier(_ context.Context, identifier string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return a.Username == identifier || a.Email == identifier })
}

func (r *stubAccountRepo) FindByUsernameAndEmail(_ context.Context, username, email string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return a.Username == username && a.Email == email })
}

func (r *stubAccountRepo) ReplaceRegistration(_ context.Context, id, username, hash, code string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.IsVerified {
		return domain.ErrAccountNotFound
	}
	if err := r.clash(id, username, ""); err != nil {
		return err
	}
	a.Username, a.PasswordHash, a.VerifyCode, a.VerifyCodeExpiry = username, hash, code, expiry
	return nil
}

func (r *stubAccountRepo) DeleteUnverified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.IsVerified {
		return domain.ErrAccountNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *stubAccountRepo) SetVerificationCode(_ context.Context, id, code string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.VerifyCode, a.VerifyCodeExpiry = code, expiry
	return nil
}

func (r *stubAccountRepo) RedeemCode(_ context.Context, id, code string, now time.Time, change ports.CodeRedemption) error {
	if r.redeemFn != nil {
		if err := r.redeemFn(id, code); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.VerifyCode != code || !now.Before(a.VerifyCodeExpiry) {
		return domain.ErrInvalidCode
	}
	a.VerifyCode = domain.ConsumedCode
	a.VerifyCodeExpiry = time.Unix(0, 0).UTC()
	if change.MarkVerified {
		a.IsVerified = true
	}
	if change.PasswordHash != "" {
		a.PasswordHash = change.PasswordHash
	}
	return nil
}

func (r *stubAccountRepo) SetAcceptingMessages(_ context.Context, id string, accept bool) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	a.IsAcceptingMessage = accept
	return cloneAccount(a), nil
}

func (r *stubAccountRepo) AppendMessage(_ context.Context, accountID string, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[accountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	r.nextMsg++
	msg.ID = "msg" + strconv.Itoa(r.nextMsg)
	a.Messages = append(a.Messages, *msg)
	return nil
}

func (r *stubAccountRepo) ListMessages(_ context.Context, accountID string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return append([]domain.Message{}, a.Messages...), nil
}

func (r *stubAccountRepo) DeleteMessage(_ context.Context, accountID, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[accountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	kept := a.Messages[:0]
	for _, m := range a.Messages {
		if m.ID != messageID {
			kept = append(kept, m)
		}
	}
	a.Messages = kept
	return nil
}

func (r *stubAccountRepo) get(id string) *domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneAccount(r.byID[id])
}

// ---------------------------------------------------------------------------
// Collaborator stubs
// ---------------------------------------------------------------------------

type stubMailer struct {
	err  error
	sent []ports.CodeMail
}

func (m *stubMailer) SendCode(_ context.Context, mail ports.CodeMail) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, mail)
	return nil
}

func (m *stubMailer) last() ports.CodeMail {
	if len(m.sent) == 0 {
		return ports.CodeMail{}
	}
	return m.sent[len(m.sent)-1]
}

type stubThrottle struct {
	allow bool
	err   error
	keys  []string
}

func (t *stubThrottle) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	t.keys = append(t.keys, key)
	return t.allow, t.err
}

type stubGenerator struct {
	out     string
	err     error
	prompts []string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.out, g.err
}

var errBoom = errors.New("boom")

// fixedClock returns a clock stuck at t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// sequentialCodes hands out the given codes in order.
func sequentialCodes(codes ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}
