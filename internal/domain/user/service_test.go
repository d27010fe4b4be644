package user

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gabpaderog/maxicoffee-server/internal/apperr"
	"github.com/gabpaderog/maxicoffee-server/internal/auth"
	"github.com/gabpaderog/maxicoffee-server/internal/txn"
)

// --- Mock implementations ---

type memUsers struct {
	byID map[string]User
	// conflicts makes the next n Update calls fail with a serialization error.
	conflicts int
}

func (m *memUsers) Create(_ context.Context, u *User) error {
	m.byID[u.ID] = *u
	return nil
}

func (m *memUsers) Get(_ context.Context, id string) (*User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUsers) Update(_ context.Context, u *User) error {
	if m.conflicts > 0 {
		m.conflicts--
		return &pgconn.PgError{Code: "40001"}
	}
	m.byID[u.ID] = *u
	return nil
}

func (m *memUsers) Exists(_ context.Context, id string) (bool, error) {
	_, ok := m.byID[id]
	return ok, nil
}

func (m *memUsers) Count(_ context.Context) (int64, error) {
	return int64(len(m.byID)), nil
}

type memTokens struct {
	byID map[string]Token
}

func (m *memTokens) Create(_ context.Context, t *Token) error {
	m.byID[t.ID] = *t
	return nil
}

func (m *memTokens) Find(_ context.Context, token string, typ auth.TokenType, now time.Time) (*Token, error) {
	for _, t := range m.byID {
		if t.Token == token && t.Type == typ && t.ExpiresAt.After(now) {
			return &t, nil
		}
	}
	return nil, ErrTokenNotFound
}

func (m *memTokens) Delete(_ context.Context, id string) error {
	delete(m.byID, id)
	return nil
}

func (m *memTokens) DeleteForUser(_ context.Context, userID string, typ auth.TokenType) error {
	for id, t := range m.byID {
		if t.UserID == userID && t.Type == typ {
			delete(m.byID, id)
		}
	}
	return nil
}

func (m *memTokens) ofType(typ auth.TokenType) []Token {
	var out []Token
	for _, t := range m.byID {
		if t.Type == typ {
			out = append(out, t)
		}
	}
	return out
}

type directRunner struct{ runs int }

func (r *directRunner) Run(ctx context.Context, work func(ctx context.Context) error) error {
	r.runs++
	return work(ctx)
}

type outbox struct {
	sent []Message
	err  error
}

func (o *outbox) Send(_ context.Context, m Message) error {
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, m)
	return nil
}

// --- Helpers ---

type fixture struct {
	users  *memUsers
	tokens *memTokens
	runner *directRunner
	mail   *outbox
	svc    *Service
}

func newFixture() *fixture {
	f := &fixture{
		users:  &memUsers{byID: map[string]User{}},
		tokens: &memTokens{byID: map[string]Token{}},
		runner: &directRunner{},
		mail:   &outbox{},
	}
	f.svc = NewService(f.users, f.tokens, f.runner, auth.NewIssuer("test-secret", auth.TTLs{}), f.mail, Config{
		VerifyURL:  "http://localhost:5174/email-verification",
		BcryptCost: bcrypt.MinCost,
		Retry:      txn.Policy{Attempts: 3, Backoff: time.Millisecond},
	})
	return f
}

func validRegistration() RegisterRequest {
	return RegisterRequest{Name: "Grace Hopper", Email: "Grace@Example.com ", Password: "Cobol1959"}
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func registerAndVerify(t *testing.T, f *fixture) *User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	token := tokenFromLink(t, f.mail.sent[len(f.mail.sent)-1].Body)
	require.NoError(t, f.svc.VerifyEmail(context.Background(), token))
	return u
}

// --- Tests ---

func TestRegister(t *testing.T) {
	f := newFixture()

	u, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	assert.Equal(t, "grace@example.com", u.Email)
	assert.Equal(t, RoleUser, u.Role)
	assert.False(t, u.IsVerified)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("Cobol1959")))

	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "grace@example.com", f.mail.sent[0].To)
	assert.NotEmpty(t, tokenFromLink(t, f.mail.sent[0].Body))
	assert.Len(t, f.tokens.ofType(auth.TypeVerification), 1)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  RegisterRequest
		want string
	}{
		{"short name", RegisterRequest{Name: "Al", Email: "al@example.com", Password: "Passw0rdX"}, `"name" length must be at least 3`},
		{"bad email", RegisterRequest{Name: "Alan", Email: "nope", Password: "Passw0rdX"}, `"email" must be a valid email`},
		{"weak password", RegisterRequest{Name: "Alan", Email: "al@example.com", Password: "password1"}, "uppercase"},
		{"short password", RegisterRequest{Name: "Alan", Email: "al@example.com", Password: "Pa1"}, `"password" length must be at least 8`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Register(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, apperr.Validation, apperr.KindOf(err))
			assert.Contains(t, apperr.Message(err), tt.want)
			assert.Empty(t, f.users.byID)
		})
	}
}

func TestRegister_UnverifiedCanReRegister(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	req := validRegistration()
	req.Name = "Rear Admiral Hopper"
	second, err := f.svc.Register(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Rear Admiral Hopper", f.users.byID[first.ID].Name)
	assert.Len(t, f.users.byID, 1)
	assert.Len(t, f.tokens.ofType(auth.TypeVerification), 1, "old verification token must be replaced")
}

func TestRegister_VerifiedEmailTaken(t *testing.T) {
	f := newFixture()
	registerAndVerify(t, f)

	_, err := f.svc.Register(context.Background(), validRegistration())
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestRegister_MailFailure(t *testing.T) {
	f := newFixture()
	f.mail.err = errors.New("smtp down")

	_, err := f.svc.Register(context.Background(), validRegistration())
	require.Error(t, err)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
}

func TestVerifyEmail(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	u, err := f.svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	token := tokenFromLink(t, f.mail.sent[0].Body)

	require.NoError(t, f.svc.VerifyEmail(ctx, token))
	assert.True(t, f.users.byID[u.ID].IsVerified)
	assert.Empty(t, f.tokens.ofType(auth.TypeVerification))

	err = f.svc.VerifyEmail(ctx, token)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.Equal(t, "Invalid Token", apperr.Message(err))
}

func TestVerifyEmail_RetriesWriteConflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	u, err := f.svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	token := tokenFromLink(t, f.mail.sent[0].Body)

	f.users.conflicts = 2
	runsBefore := f.runner.runs
	require.NoError(t, f.svc.VerifyEmail(ctx, token))
	assert.True(t, f.users.byID[u.ID].IsVerified)
	assert.Equal(t, 3, f.runner.runs-runsBefore)
}

func TestVerifyEmail_ConflictExhausted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	token := tokenFromLink(t, f.mail.sent[0].Body)

	f.users.conflicts = 5
	err = f.svc.VerifyEmail(ctx, token)
	assert.True(t, txn.IsConflict(err))
	assert.Equal(t, 2, f.users.conflicts)
}

func TestVerifyEmail_BadToken(t *testing.T) {
	f := newFixture()
	err := f.svc.VerifyEmail(context.Background(), "garbage")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestLogin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := registerAndVerify(t, f)

	sess, err := f.svc.Login(ctx, " GRACE@example.com", "Cobol1959")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.AccessToken)
	assert.NotEmpty(t, sess.RefreshToken)

	refresh := f.tokens.ofType(auth.TypeRefresh)
	require.Len(t, refresh, 1)
	assert.Equal(t, u.ID, refresh[0].UserID)
	assert.Equal(t, sess.RefreshToken, refresh[0].Token)
}

func TestLogin_Rejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "grace@example.com", "Cobol1959")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "unverified accounts cannot log in")

	token := tokenFromLink(t, f.mail.sent[0].Body)
	require.NoError(t, f.svc.VerifyEmail(ctx, token))

	_, err = f.svc.Login(ctx, "grace@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))

	_, err = f.svc.Login(ctx, "nobody@example.com", "Cobol1959")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, "", "")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestPasswordReset(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := registerAndVerify(t, f)

	require.NoError(t, f.svc.ForgotPassword(ctx, "grace@example.com"))
	token := f.mail.sent[len(f.mail.sent)-1].Body

	require.NoError(t, f.svc.CheckResetToken(ctx, token))

	err := f.svc.ResetPassword(ctx, token, "weak")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	require.NoError(t, f.svc.ResetPassword(ctx, token, "Nanosecond11"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(f.users.byID[u.ID].PasswordHash), []byte("Nanosecond11")))

	err = f.svc.CheckResetToken(ctx, token)
	assert.ErrorIs(t, err, ErrTokenNotFound, "reset token is single use")

	_, err = f.svc.Login(ctx, "grace@example.com", "Nanosecond11")
	assert.NoError(t, err)
}

func TestForgotPassword_ReplacesToken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	registerAndVerify(t, f)

	require.NoError(t, f.svc.ForgotPassword(ctx, "grace@example.com"))
	require.NoError(t, f.svc.ForgotPassword(ctx, "grace@example.com"))
	assert.Len(t, f.tokens.ofType(auth.TypeReset), 1)
}

func TestForgotPassword_UnknownOrUnverified(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	err := f.svc.ForgotPassword(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	err = f.svc.ForgotPassword(ctx, "grace@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckResetToken_WrongType(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	verification := tokenFromLink(t, f.mail.sent[0].Body)

	err = f.svc.CheckResetToken(ctx, verification)
	assert.ErrorIs(t, err, auth.ErrTokenWrongType)
}

func TestExistsCount(t *testing.T) {
	f := newFixture()
	u := registerAndVerify(t, f)

	ok, err := f.svc.Exists(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := f.svc.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
