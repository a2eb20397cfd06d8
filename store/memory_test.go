package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	creds, err := m.Load(ctx)
	require.NoError(t, err)
	assert.True(t, creds.Empty())

	require.NoError(t, m.Save(ctx, Credentials{AccessToken: "A1", RefreshToken: "R1"}))
	creds, err = m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A1", creds.AccessToken)
	assert.Equal(t, "R1", creds.RefreshToken)

	require.NoError(t, m.Clear(ctx))
	creds, err = m.Load(ctx)
	require.NoError(t, err)
	assert.True(t, creds.Empty())
}

// Concurrent saves of whole pairs must never let a reader observe a pair
// with tokens from two different generations.
func TestMemoryPairAtomicity(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Save(ctx, Credentials{AccessToken: "A0", RefreshToken: "R0"}))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				_ = m.Save(ctx, Credentials{AccessToken: "A0", RefreshToken: "R0"})
			} else {
				_ = m.Save(ctx, Credentials{AccessToken: "A1", RefreshToken: "R1"})
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		creds, err := m.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, creds.AccessToken[1:], creds.RefreshToken[1:], "mixed pair observed: %+v", creds)
	}

	close(stop)
	wg.Wait()
}
