package verification

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-token-nosql/internal/application/dispatch"
	"github.com/go-token-nosql/internal/application/token"
	"github.com/go-token-nosql/internal/domain"
	"github.com/go-token-nosql/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (n *recordingNotifier) SendEmail(_ context.Context, to, _, _ string) error { return n.record(to) }
func (n *recordingNotifier) SendSMS(_ context.Context, to, _ string) error      { return n.record(to) }

func (n *recordingNotifier) record(to string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("smtp: connection refused")
	}
	n.sent = append(n.sent, to)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type failingUpdates struct {
	*memory.UserStore
	fail bool
}

func (f *failingUpdates) Update(ctx context.Context, id string, p domain.UserPatch) error {
	if f.fail {
		return errors.New("dynamodb: throttled")
	}
	return f.UserStore.Update(ctx, id, p)
}

// --- helpers ---

type fixture struct {
	svc      Service
	tokens   *memory.TokenStore
	users    *failingUpdates
	notifier *recordingNotifier
	now      time.Time
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:    &failingUpdates{UserStore: memory.NewUserStore()},
		notifier: &recordingNotifier{},
		now:      time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.tokens = memory.NewTokenStore(clock)
	require.NoError(t, f.users.Put(context.Background(), &domain.User{
		UserID: "u1", Name: "Ada", Email: "ada@example.com", PhoneNumber: "+15550001111",
	}))
	f.svc = NewService(ServiceDeps{
		Tokens:     token.NewManager(f.tokens, token.WithClock(clock)),
		UserRepo:   f.users,
		Dispatcher: dispatch.NewAdapter(f.notifier, "https://api.example.com", time.UTC, nil),
		TTL:        24 * time.Hour,
	})
	return f
}

func (f *fixture) user(t *testing.T) *domain.User {
	t.Helper()
	u, err := f.users.Get(context.Background(), "u1")
	require.NoError(t, err)
	return u
}

func (f *fixture) liveValue(t *testing.T, p domain.Purpose) string {
	t.Helper()
	tok, err := f.tokens.FindLive(context.Background(), "u1", p)
	require.NoError(t, err)
	return tok.Value
}

// --- RequestVerification ---

func TestRequestVerification_ReturnsExpiryAndDispatches(t *testing.T) {
	f := newFixture(t)

	exp, err := f.svc.RequestVerification(context.Background(), f.user(t), domain.ChannelEmail)

	require.NoError(t, err)
	assert.Equal(t, dispatch.Expiry{Date: "02/11/2026", Time: "8:00:00 AM"}, exp)
	assert.Equal(t, []string{"ada@example.com"}, f.notifier.sent)
	assert.Len(t, f.liveValue(t, domain.PurposeEmailVerify), 32)
}

func TestRequestVerification_AlreadyVerified(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.users.Update(context.Background(), "u1", domain.VerifiedPatch(domain.ChannelSMS)))

	_, err := f.svc.RequestVerification(context.Background(), f.user(t), domain.ChannelSMS)

	assert.True(t, errors.Is(err, domain.ErrAlreadyVerified))
	assert.Equal(t, 0, f.tokens.Len())
}

func TestRequestVerification_SMSWithoutPhone(t *testing.T) {
	f := newFixture(t)
	u := f.user(t)
	u.PhoneNumber = ""

	_, err := f.svc.RequestVerification(context.Background(), u, domain.ChannelSMS)

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	assert.Equal(t, 0, f.tokens.Len())
}

func TestRequestVerification_UnknownChannel(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RequestVerification(context.Background(), f.user(t), domain.Channel("fax"))
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestRequestVerification_ReissueInvalidatesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestVerification(ctx, f.user(t), domain.ChannelEmail)
	require.NoError(t, err)
	first := f.liveValue(t, domain.PurposeEmailVerify)

	_, err = f.svc.RequestVerification(ctx, f.user(t), domain.ChannelEmail)
	require.NoError(t, err)
	second := f.liveValue(t, domain.PurposeEmailVerify)

	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, f.tokens.Len())
	err = f.svc.ConfirmVerification(ctx, domain.ChannelEmail, first)
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
}

func TestRequestVerification_DispatchFailureKeepsToken(t *testing.T) {
	f := newFixture(t)
	f.notifier.fail = true

	_, err := f.svc.RequestVerification(context.Background(), f.user(t), domain.ChannelEmail)

	assert.True(t, errors.Is(err, domain.ErrDispatchFailed))
	assert.Equal(t, 1, f.tokens.Len())
}

func TestRequestVerification_ConcurrentLeavesOneLiveToken(t *testing.T) {
	f := newFixture(t)
	u := f.user(t)

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.RequestVerification(context.Background(), u, domain.ChannelEmail); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(0), failures.Load())
	assert.Equal(t, 8, f.notifier.count())
	assert.Equal(t, 1, f.tokens.Len())
}

// --- ResendVerification ---

func TestResendVerification_ReusesLiveToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestVerification(ctx, f.user(t), domain.ChannelSMS)
	require.NoError(t, err)
	first := f.liveValue(t, domain.PurposePhoneVerify)

	f.advance(time.Hour)
	_, err = f.svc.ResendVerification(ctx, f.user(t), domain.ChannelSMS)

	require.NoError(t, err)
	assert.Equal(t, first, f.liveValue(t, domain.PurposePhoneVerify))
	assert.Equal(t, 2, f.notifier.count())
}

func TestResendVerification_IssuesFreshAfterExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestVerification(ctx, f.user(t), domain.ChannelEmail)
	require.NoError(t, err)
	first := f.liveValue(t, domain.PurposeEmailVerify)

	f.advance(25 * time.Hour)
	exp, err := f.svc.ResendVerification(ctx, f.user(t), domain.ChannelEmail)

	require.NoError(t, err)
	assert.NotEqual(t, first, f.liveValue(t, domain.PurposeEmailVerify))
	assert.Equal(t, "02/12/2026", exp.Date)
}

func TestResendVerification_AlreadyVerified(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.users.Update(context.Background(), "u1", domain.VerifiedPatch(domain.ChannelEmail)))

	_, err := f.svc.ResendVerification(context.Background(), f.user(t), domain.ChannelEmail)

	assert.True(t, errors.Is(err, domain.ErrAlreadyVerified))
}

// --- ConfirmVerification ---

func TestConfirmVerification_FullFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestVerification(ctx, f.user(t), domain.ChannelEmail)
	require.NoError(t, err)
	value := f.liveValue(t, domain.PurposeEmailVerify)

	require.NoError(t, f.svc.ConfirmVerification(ctx, domain.ChannelEmail, value))

	assert.True(t, f.user(t).IsVerifiedEmail)
	assert.False(t, f.user(t).IsVerifiedPhoneNumber)
	assert.Equal(t, 0, f.tokens.Len())

	err = f.svc.ConfirmVerification(ctx, domain.ChannelEmail, value)
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
}

func TestConfirmVerification_WrongChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestVerification(ctx, f.user(t), domain.ChannelEmail)
	require.NoError(t, err)

	err = f.svc.ConfirmVerification(ctx, domain.ChannelSMS, f.liveValue(t, domain.PurposeEmailVerify))

	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
	assert.False(t, f.user(t).IsVerifiedPhoneNumber)
}

func TestConfirmVerification_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestVerification(ctx, f.user(t), domain.ChannelEmail)
	require.NoError(t, err)
	value := f.liveValue(t, domain.PurposeEmailVerify)

	f.advance(24 * time.Hour)
	err = f.svc.ConfirmVerification(ctx, domain.ChannelEmail, value)

	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
	assert.False(t, f.user(t).IsVerifiedEmail)
}

func TestConfirmVerification_AlreadyVerifiedRevokesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestVerification(ctx, f.user(t), domain.ChannelEmail)
	require.NoError(t, err)
	value := f.liveValue(t, domain.PurposeEmailVerify)
	require.NoError(t, f.users.Update(ctx, "u1", domain.VerifiedPatch(domain.ChannelEmail)))

	err = f.svc.ConfirmVerification(ctx, domain.ChannelEmail, value)

	assert.True(t, errors.Is(err, domain.ErrAlreadyVerified))
	assert.Equal(t, 0, f.tokens.Len())
}

func TestConfirmVerification_PersistFailureKeepsToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestVerification(ctx, f.user(t), domain.ChannelEmail)
	require.NoError(t, err)
	value := f.liveValue(t, domain.PurposeEmailVerify)

	f.users.fail = true
	err = f.svc.ConfirmVerification(ctx, domain.ChannelEmail, value)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrInvalidToken))

	f.users.fail = false
	require.NoError(t, f.svc.ConfirmVerification(ctx, domain.ChannelEmail, value))
	assert.True(t, f.user(t).IsVerifiedEmail)
}

func TestConfirmVerification_EmptyValue(t *testing.T) {
	f := newFixture(t)
	err := f.svc.ConfirmVerification(context.Background(), domain.ChannelEmail, "")
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestConfirmVerification_ConcurrentRedeemsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestVerification(ctx, f.user(t), domain.ChannelSMS)
	require.NoError(t, err)
	value := f.liveValue(t, domain.PurposePhoneVerify)

	var wins, invalid, already atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.svc.ConfirmVerification(ctx, domain.ChannelSMS, value)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, domain.ErrInvalidToken):
				invalid.Add(1)
			case errors.Is(err, domain.ErrAlreadyVerified):
				already.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(15), invalid.Load()+already.Load())
	assert.True(t, f.user(t).IsVerifiedPhoneNumber)
}
