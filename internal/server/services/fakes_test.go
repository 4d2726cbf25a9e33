package services

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/Satyam1603/GoTogether/internal/common"
	"github.com/Satyam1603/GoTogether/internal/cryptox"
	"github.com/Satyam1603/GoTogether/internal/dbx"
	"github.com/Satyam1603/GoTogether/internal/logging"
	"github.com/Satyam1603/GoTogether/internal/server/config"
	"github.com/Satyam1603/GoTogether/internal/server/metrics"
	"github.com/Satyam1603/GoTogether/internal/server/models"
	"github.com/Satyam1603/GoTogether/internal/server/repositories/challenges"
	"github.com/Satyam1603/GoTogether/internal/server/repositories/refreshtokens"
	"github.com/Satyam1603/GoTogether/internal/server/repositories/users"
)

func TestMain(m *testing.M) {
	cryptox.PasswordCost = bcrypt.MinCost
	os.Exit(m.Run())
}

// memStore backs all fake repositories. Every method holds the mutex, so
// compare-and-set operations are atomic like their SQL counterparts.
type memStore struct {
	mu         sync.Mutex
	users      map[string]*models.User
	challenges []*models.Challenge
	tokens     map[string]*models.RefreshToken

	locks []string

	// beforeConsume runs ahead of the challenge compare-and-set, letting a
	// test interleave a competing write.
	beforeConsume func()

	createUserErr error
	consumeErr    error
	createTokErr  error
	revokeErr     error
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[string]*models.User{},
		tokens: map[string]*models.RefreshToken{},
	}
}

type fakeUsers struct{ s *memStore }

func (f fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.createUserErr != nil {
		return nil, f.s.createUserErr
	}
	for _, o := range f.s.users {
		if (u.Email != nil && o.Email != nil && *u.Email == *o.Email) ||
			(u.Phone != nil && o.Phone != nil && *u.Phone == *o.Phone) {
			return nil, common.ErrorAlreadyExists
		}
	}
	c := *u
	c.ID = uuid.NewString()
	f.s.users[c.ID] = &c
	out := c
	return &out, nil
}

func (f fakeUsers) get(match func(*models.User) bool) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, u := range f.s.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	return f.get(func(u *models.User) bool { return u.ID == id })
}

func (f fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return f.get(func(u *models.User) bool { return u.Email != nil && *u.Email == email })
}

func (f fakeUsers) GetByPhone(_ context.Context, p string) (*models.User, error) {
	return f.get(func(u *models.User) bool { return u.Phone != nil && *u.Phone == p })
}

func (f fakeUsers) MarkVerified(_ context.Context, id, purpose, contact string) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	switch purpose {
	case common.PurposePhone:
		u.PhoneVerified, u.Phone = true, &contact
	case common.PurposeEmail:
		u.EmailVerified, u.Email = true, &contact
	}
	c := *u
	return &c, nil
}

func (f fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f fakeUsers) UpdateProfile(_ context.Context, upd *models.User) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[upd.ID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	for _, o := range f.s.users {
		if o.ID == upd.ID {
			continue
		}
		if (upd.Email != nil && o.Email != nil && *upd.Email == *o.Email) ||
			(upd.Phone != nil && o.Phone != nil && *upd.Phone == *o.Phone) {
			return nil, common.ErrorAlreadyExists
		}
	}
	u.FirstName, u.LastName = upd.FirstName, upd.LastName
	u.Email, u.Phone = upd.Email, upd.Phone
	u.EmailVerified, u.PhoneVerified = upd.EmailVerified, upd.PhoneVerified
	c := *u
	return &c, nil
}

func (f fakeUsers) LockForUpdate(_ context.Context, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.users[id]; !ok {
		return common.ErrorNotFound
	}
	f.s.locks = append(f.s.locks, id)
	return nil
}

func (f fakeUsers) SetProfileImageKey(_ context.Context, id, key string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.ProfileImageKey = &key
	return nil
}

type fakeChallenges struct{ s *memStore }

func (f fakeChallenges) Create(_ context.Context, c *models.Challenge) (*models.Challenge, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	cp := *c
	cp.ID = uuid.NewString()
	f.s.challenges = append(f.s.challenges, &cp)
	out := cp
	return &out, nil
}

func (f fakeChallenges) SupersedeActive(_ context.Context, userID, purpose string, at time.Time) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for _, c := range f.s.challenges {
		if c.UserID == userID && c.Purpose == purpose && c.ConsumedAt == nil && c.SupersededAt == nil {
			t := at
			c.SupersededAt = &t
			n++
		}
	}
	return n, nil
}

// newest walks challenges from the most recent one.
func (f fakeChallenges) newest(match func(*models.Challenge) bool) (*models.Challenge, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for i := len(f.s.challenges) - 1; i >= 0; i-- {
		if c := f.s.challenges[i]; match(c) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f fakeChallenges) Latest(_ context.Context, userID, purpose string) (*models.Challenge, error) {
	return f.newest(func(c *models.Challenge) bool { return c.UserID == userID && c.Purpose == purpose })
}

func (f fakeChallenges) FindForUserByHash(_ context.Context, userID, purpose, hash string) (*models.Challenge, error) {
	return f.newest(func(c *models.Challenge) bool {
		return c.UserID == userID && c.Purpose == purpose && c.CodeHash == hash
	})
}

func (f fakeChallenges) FindByHash(_ context.Context, purpose, hash string) (*models.Challenge, error) {
	return f.newest(func(c *models.Challenge) bool { return c.Purpose == purpose && c.CodeHash == hash })
}

func (f fakeChallenges) Consume(_ context.Context, id string, at time.Time) error {
	if f.s.beforeConsume != nil {
		f.s.beforeConsume()
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.consumeErr != nil {
		return f.s.consumeErr
	}
	for _, c := range f.s.challenges {
		if c.ID == id {
			if c.ConsumedAt != nil {
				return common.ErrAlreadyConsumed
			}
			if c.SupersededAt != nil {
				return common.ErrSuperseded
			}
			t := at
			c.ConsumedAt = &t
			return nil
		}
	}
	return common.ErrAlreadyConsumed
}

func (f fakeChallenges) CountSince(_ context.Context, userID string, since time.Time) (int, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	n := 0
	for _, c := range f.s.challenges {
		if c.UserID == userID && !c.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f fakeChallenges) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	kept := f.s.challenges[:0]
	var n int64
	for _, c := range f.s.challenges {
		if c.ExpiresAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	f.s.challenges = kept
	return n, nil
}

type fakeTokens struct{ s *memStore }

func (f fakeTokens) Create(_ context.Context, userID, hash string, expiresAt time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.createTokErr != nil {
		return f.s.createTokErr
	}
	f.s.tokens[hash] = &models.RefreshToken{ID: uuid.NewString(), UserID: userID, TokenHash: hash, ExpiresAt: expiresAt}
	return nil
}

func (f fakeTokens) Find(_ context.Context, hash string) (*models.RefreshToken, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	t, ok := f.s.tokens[hash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *t
	return &c, nil
}

func (f fakeTokens) Consume(_ context.Context, hash string, at time.Time) (*models.RefreshToken, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.consumeErr != nil {
		return nil, f.s.consumeErr
	}
	t, ok := f.s.tokens[hash]
	if !ok || t.RevokedAt != nil || !t.ExpiresAt.After(at) {
		return nil, common.ErrorNotFound
	}
	r := at
	t.RevokedAt = &r
	c := *t
	return &c, nil
}

func (f fakeTokens) Revoke(_ context.Context, userID, hash string, at time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.revokeErr != nil {
		return f.s.revokeErr
	}
	if t, ok := f.s.tokens[hash]; ok && t.UserID == userID && t.RevokedAt == nil {
		r := at
		t.RevokedAt = &r
	}
	return nil
}

func (f fakeTokens) RevokeByHash(_ context.Context, hash string, at time.Time) (string, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.revokeErr != nil {
		return "", f.s.revokeErr
	}
	t, ok := f.s.tokens[hash]
	if !ok || t.RevokedAt != nil {
		return "", common.ErrorNotFound
	}
	r := at
	t.RevokedAt = &r
	return t.UserID, nil
}

func (f fakeTokens) RevokeAllForUser(_ context.Context, userID string, at time.Time) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.revokeErr != nil {
		return 0, f.s.revokeErr
	}
	var n int64
	for _, t := range f.s.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			r := at
			t.RevokedAt = &r
			n++
		}
	}
	return n, nil
}

func (f fakeTokens) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for h, t := range f.s.tokens {
		if t.ExpiresAt.Before(before) {
			delete(f.s.tokens, h)
			n++
		}
	}
	return n, nil
}

func (s *memStore) liveTokens(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			n++
		}
	}
	return n
}

type fakeRepoManager struct{ s *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error      { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository                  { return fakeUsers{m.s} }
func (m *fakeRepoManager) Challenges(dbx.DBTX) challenges.Repository        { return fakeChallenges{m.s} }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return fakeTokens{m.s} }

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sent struct {
	to, code, link string
	expiresAt      time.Time
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (n *fakeNotifier) SendOTP(_ context.Context, to, code string, exp time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{to: to, code: code, expiresAt: exp})
	return n.err
}

func (n *fakeNotifier) SendEmailVerification(_ context.Context, to, link string, exp time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{to: to, link: link, expiresAt: exp})
	return n.err
}

func (n *fakeNotifier) last(t *testing.T) sent {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent, "nothing was sent")
	return n.sent[len(n.sent)-1]
}

// lastToken extracts the email token from the last confirmation link.
func (n *fakeNotifier) lastToken(t *testing.T) string {
	t.Helper()
	u, err := url.Parse(n.last(t).link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

type testEnv struct {
	store        *memStore
	db           *sql.DB
	clock        *fakeClock
	notifier     *fakeNotifier
	cfg          *config.Config
	tokens       *TokenService
	verification *VerificationService
	users        *UserService
}

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.PublicBaseURL = "https://api.example.com"
	return c
}

// newSQLiteDB provides a real *sql.DB so dbx.WithTx can begin and commit;
// the fakes ignore the handle they are given.
func newSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	e := &testEnv{
		store:    newMemStore(),
		db:       newSQLiteDB(t),
		clock:    &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
		notifier: &fakeNotifier{},
		cfg:      testConfig(),
	}
	rm := &fakeRepoManager{s: e.store}
	mx := metrics.New()

	e.tokens = NewTokenService(e.db, rm, e.cfg, mx)
	e.tokens.now = e.clock.Now
	e.verification = NewVerificationService(e.db, rm, e.cfg, e.notifier, logging.Nop{}, mx)
	e.verification.now = e.clock.Now
	e.users = NewUserService(e.db, rm, e.tokens, e.verification, logging.Nop{}, mx)
	e.users.now = e.clock.Now
	return e
}

// seedUser stores a user directly, bypassing Register.
func (e *testEnv) seedUser(t *testing.T, email, phone string) *models.User {
	t.Helper()
	hash, err := cryptox.HashPassword([]byte("correct horse"))
	require.NoError(t, err)
	u := &models.User{PasswordHash: hash, Role: common.RolePassenger, VerificationMethod: common.PurposePhone}
	if email != "" {
		u.Email = &email
		u.VerificationMethod = common.PurposeEmail
	}
	if phone != "" {
		u.Phone = &phone
		u.VerificationMethod = common.PurposePhone
	}
	u, err = fakeUsers{e.store}.Create(context.Background(), u)
	require.NoError(t, err)
	return u
}

func sortedErrors(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		if err == nil {
			out = append(out, "ok")
			continue
		}
		out = append(out, err.Error())
	}
	sort.Strings(out)
	return out
}
