package pair

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m1ckyb/CommuteCompute-sub001/storage"
)

// testService wires a fake clock through both the service and the
// store so TTL expiry can be steered.
func testService(t *testing.T) (*Service, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC))
	kv := storage.NewMemoryKV()
	kv.TimeNow = clock.Now
	return NewServiceWithClock(kv, clock), clock
}

func TestPairingFlow(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(t)

	// Device boots, claims its code.
	res, err := svc.Claim(ctx, "AB12CD", "device-1", "trmnl-og")
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, res.Status)

	// Nothing configured yet.
	res, err = svc.Poll(ctx, "AB12CD")
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, res.Status)
	assert.Empty(t, res.WebhookURL)

	// Wizard finishes and writes the webhook URL.
	res, err = svc.Complete(ctx, "AB12CD", "https://dash.example/api/screen?token=abc", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusPaired, res.Status)

	// The next poll hands the URL over exactly once.
	res, err = svc.Poll(ctx, "AB12CD")
	require.NoError(t, err)
	assert.Equal(t, StatusPaired, res.Status)
	assert.Equal(t, "https://dash.example/api/screen?token=abc", res.WebhookURL)

	// Consumed; further polls see an expired code.
	res, err = svc.Poll(ctx, "AB12CD")
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, res.Status)
}

func TestClaimConflicts(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(t)

	_, err := svc.Claim(ctx, "AB12CD", "device-1", "trmnl-og")
	require.NoError(t, err)

	// A different device cannot take the same code.
	_, err = svc.Claim(ctx, "AB12CD", "device-2", "kindle-pw5")
	assert.ErrorIs(t, err, ErrCodeInUse)

	// The same device may re-claim.
	res, err := svc.Claim(ctx, "AB12CD", "device-1", "trmnl-og")
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, res.Status)
}

func TestCompleteWithoutClaim(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(t)

	// The wizard can finish before the device ever claims.
	res, err := svc.Complete(ctx, "XY99ZZ", "https://dash.example/hook", map[string]string{"theme": "dark"})
	require.NoError(t, err)
	assert.Equal(t, StatusPaired, res.Status)

	res, err = svc.Poll(ctx, "XY99ZZ")
	require.NoError(t, err)
	assert.Equal(t, StatusPaired, res.Status)
	assert.Equal(t, "https://dash.example/hook", res.WebhookURL)
}

func TestEntryExpiry(t *testing.T) {
	ctx := context.Background()
	svc, clock := testService(t)

	_, err := svc.Claim(ctx, "AB12CD", "device-1", "trmnl-og")
	require.NoError(t, err)

	clock.Advance(EntryTTL + time.Second)

	res, err := svc.Poll(ctx, "AB12CD")
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, res.Status)
}

func TestClaimResetsTTL(t *testing.T) {
	ctx := context.Background()
	svc, clock := testService(t)

	_, err := svc.Claim(ctx, "AB12CD", "device-1", "trmnl-og")
	require.NoError(t, err)

	clock.Advance(EntryTTL - time.Minute)
	_, err = svc.Claim(ctx, "AB12CD", "device-1", "trmnl-og")
	require.NoError(t, err)

	// The original deadline has passed, but the re-claim refreshed it.
	clock.Advance(2 * time.Minute)
	res, err := svc.Poll(ctx, "AB12CD")
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, res.Status)
}

func TestBadCodes(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(t)

	for _, code := range []string{"", "abc123", "AB12C", "AB12CDE", "AB-12C", "AB12CÉ"} {
		_, err := svc.Claim(ctx, code, "device-1", "trmnl-og")
		assert.ErrorIs(t, err, ErrBadCode, "code %q", code)

		_, err = svc.Complete(ctx, code, "https://dash.example/hook", nil)
		assert.ErrorIs(t, err, ErrBadCode, "code %q", code)

		_, err = svc.Poll(ctx, code)
		assert.ErrorIs(t, err, ErrBadCode, "code %q", code)
	}
}

// deadlineKV records whether every store call arrived with a
// per-call deadline no further out than kvTimeout.
type deadlineKV struct {
	storage.KV
	t *testing.T
}

func (d *deadlineKV) check(ctx context.Context) {
	d.t.Helper()
	deadline, ok := ctx.Deadline()
	require.True(d.t, ok, "store call without a deadline")
	assert.LessOrEqual(d.t, time.Until(deadline), kvTimeout)
}

func (d *deadlineKV) Get(ctx context.Context, key string) ([]byte, error) {
	d.check(ctx)
	return d.KV.Get(ctx, key)
}

func (d *deadlineKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	d.check(ctx)
	return d.KV.Set(ctx, key, value, ttl)
}

func (d *deadlineKV) Delete(ctx context.Context, key string) error {
	d.check(ctx)
	return d.KV.Delete(ctx, key)
}

func TestStoreCallsCarryDeadline(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&deadlineKV{KV: storage.NewMemoryKV(), t: t})

	_, err := svc.Claim(ctx, "AB12CD", "device-1", "trmnl-og")
	require.NoError(t, err)

	_, err = svc.Complete(ctx, "AB12CD", "https://dash.example/hook", nil)
	require.NoError(t, err)

	res, err := svc.Poll(ctx, "AB12CD")
	require.NoError(t, err)
	assert.Equal(t, StatusPaired, res.Status)
}

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Len(t, code, CodeLength)
		assert.Regexp(t, `^[A-Z0-9]{6}$`, code)
		seen[code] = true
	}
	// 50 draws from a 36^6 space colliding into a handful of values
	// would mean a broken generator.
	assert.Greater(t, len(seen), 40)
}
