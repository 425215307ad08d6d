package platform

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func testMutualExclusion(t *testing.T, cap Capability) {
	t.Helper()
	require.NoError(t, cap.Init())
	defer cap.Deinit()

	const goroutines = 16
	const increments = 200
	counter := 0

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < increments; j++ {
				cap.TakeMutex()
				counter++
				cap.FreeMutex()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, goroutines*increments, counter)
}

func TestHostMutexSerializesAccess(t *testing.T) {
	testMutualExclusion(t, NewHostMutex(nil))
}

func TestSemaphoreSerializesAccess(t *testing.T) {
	testMutualExclusion(t, NewSemaphore(nil))
}

func TestSemaphoreDeinitDrainsToken(t *testing.T) {
	s := NewSemaphore(nil)
	require.NoError(t, s.Init())
	s.TakeMutex()
	s.FreeMutex()
	require.NoError(t, s.Deinit())
	require.Len(t, s.(*semaphore).token, 0)
}
