package dial_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesteltv/vestel-go/pkg/dial"
)

func smartCenter(t *testing.T, f *fakeDIAL, cfg dial.ClientConfig) *dial.SmartCenterApp {
	t.Helper()
	c := newClient(t, f.baseURL(), cfg)
	require.True(t, c.CheckForApp(context.Background(), "SmartCenter"))
	sc, ok := c.SmartCenter()
	require.True(t, ok)
	return sc
}

func TestRemoteSendsOneKeyPerTickInOrder(t *testing.T) {
	const interval = 50 * time.Millisecond

	f := newFakeDIAL(t, "SmartCenter")
	sc := smartCenter(t, f, dial.ClientConfig{QueueInterval: interval})

	require.NoError(t, sc.Remote(dial.KeyActiveIdentifier, dial.KeyCode(3)))

	require.Eventually(t, func() bool { return len(f.recorded()) == 2 }, 2*time.Second, 10*time.Millisecond)

	got := f.recorded()
	assert.Equal(t, `<remote><key code="1056"/></remote>`, got[0].body)
	assert.Equal(t, `<remote><key code="3"/></remote>`, got[1].body)
	assert.Equal(t, "/apps/SmartCenter", got[0].path)
	assert.GreaterOrEqual(t, got[1].at.Sub(got[0].at), interval/2, "keys must be spread over ticks")

	stats := sc.Stats()
	assert.Equal(t, uint64(2), stats.Sent)
	assert.Zero(t, stats.Pending)
}

func TestRemoteFailuresAreCountedNotRetried(t *testing.T) {
	f := newFakeDIAL(t, "SmartCenter")
	f.postCode = http.StatusInternalServerError
	sc := smartCenter(t, f, dial.ClientConfig{QueueInterval: 10 * time.Millisecond})

	require.NoError(t, sc.Remote(dial.KeyActive))

	require.Eventually(t, func() bool { return sc.Stats().Failed == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, f.recorded(), 1)
	assert.Zero(t, sc.Stats().Sent)
}

func TestFlushWaitsForQueuedKeys(t *testing.T) {
	f := newFakeDIAL(t, "SmartCenter")
	c := newClient(t, f.baseURL(), dial.ClientConfig{QueueInterval: 20 * time.Millisecond})
	require.True(t, c.CheckForApp(context.Background(), "SmartCenter"))
	sc, _ := c.SmartCenter()

	require.NoError(t, sc.Remote(dial.KeyVolumeSelectorIncrement, dial.KeyVolumeSelectorIncrement, dial.KeyActive))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Flush(ctx))
	require.NoError(t, c.Close())

	assert.Len(t, f.recorded(), 3, "every key is posted before close")
	assert.Equal(t, uint64(3), sc.Stats().Sent)
}

func TestFlushHonorsContext(t *testing.T) {
	f := newFakeDIAL(t, "SmartCenter")
	sc := smartCenter(t, f, dial.ClientConfig{QueueInterval: time.Hour})

	require.NoError(t, sc.Remote(dial.KeyActive))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sc.Flush(ctx), context.DeadlineExceeded)
	assert.Equal(t, 1, sc.Stats().Pending)
}

func TestFlushAfterClose(t *testing.T) {
	f := newFakeDIAL(t, "SmartCenter")
	sc := smartCenter(t, f, dial.ClientConfig{QueueInterval: time.Hour})

	require.NoError(t, sc.Remote(dial.KeyActive))
	sc.Close()
	assert.NoError(t, sc.Flush(context.Background()))
}

func TestRemoteAfterClose(t *testing.T) {
	f := newFakeDIAL(t, "SmartCenter")
	sc := smartCenter(t, f, dial.ClientConfig{})

	sc.Close()
	sc.Close()
	assert.ErrorIs(t, sc.Remote(dial.KeyActive), dial.ErrQueueClosed)
}

func TestClientCloseStopsQueues(t *testing.T) {
	f := newFakeDIAL(t, "SmartCenter")
	c, err := dial.NewClient(f.baseURL(), dial.ClientConfig{})
	require.NoError(t, err)
	require.True(t, c.CheckForApp(context.Background(), "SmartCenter"))
	sc, _ := c.SmartCenter()

	require.NoError(t, c.Close())
	assert.ErrorIs(t, sc.Remote(dial.KeyActive), dial.ErrQueueClosed)
	assert.False(t, c.CheckForApp(context.Background(), "SmartCenter"))
}

func TestKeyCodeString(t *testing.T) {
	assert.Equal(t, "ACTIVE", dial.KeyActive.String())
	assert.Equal(t, "VOLUME_SELECTOR_DECREMENT", dial.KeyVolumeSelectorDecrement.String())
	assert.Equal(t, "42", dial.KeyCode(42).String())
}
