package dial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdleQueue(t *testing.T, size int, policy DropPolicy) *SmartCenterApp {
	t.Helper()
	c, err := NewClient("http://127.0.0.1:1/apps/", ClientConfig{
		QueueInterval: time.Hour,
		QueueSize:     size,
		DropPolicy:    policy,
	})
	require.NoError(t, err)
	a := newSmartCenterApp(c, "SmartCenter", c.appURL("SmartCenter"))
	t.Cleanup(a.Close)
	return a
}

func TestDropOldest(t *testing.T) {
	a := newIdleQueue(t, 2, DropOldest)

	require.NoError(t, a.Remote(1, 2, 3))

	assert.Equal(t, []KeyCode{2, 3}, a.pending)
	assert.Equal(t, uint64(1), a.Stats().Dropped)
	assert.Equal(t, 2, a.Stats().Pending)
}

func TestDropNewest(t *testing.T) {
	a := newIdleQueue(t, 2, DropNewest)

	require.NoError(t, a.Remote(1, 2))
	require.NoError(t, a.Remote(3, 4))

	assert.Equal(t, []KeyCode{1, 2}, a.pending)
	assert.Equal(t, uint64(2), a.Stats().Dropped)
}

func TestNextIsFIFO(t *testing.T) {
	a := newIdleQueue(t, 8, DropOldest)
	require.NoError(t, a.Remote(KeyActiveIdentifier, 5, KeyActive))

	var got []KeyCode
	for {
		k, ok := a.next()
		if !ok {
			break
		}
		got = append(got, k)
	}
	assert.Equal(t, []KeyCode{KeyActiveIdentifier, 5, KeyActive}, got)
}

func TestAppURLJoin(t *testing.T) {
	for _, base := range []string{"http://10.0.0.5:8008/apps", "http://10.0.0.5:8008/apps/"} {
		c, err := NewClient(base, ClientConfig{})
		require.NoError(t, err)
		assert.Equal(t, "http://10.0.0.5:8008/apps/SmartCenter", c.appURL("SmartCenter"))
	}
}

func TestRemotePayload(t *testing.T) {
	assert.Equal(t, `<remote><key code="1012"/></remote>`, remotePayload(KeyActive))
}
