// internal/browser/session/context_utils_test.go
package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineContext(t *testing.T) {
	type ctxKey string
	const key ctxKey = "cdp"
	const value = "target-1"

	t.Run("InheritsValuesFromPrimary", func(t *testing.T) {
		ctx1 := context.WithValue(context.Background(), key, value)
		combinedCtx, cancel := CombineContext(ctx1, context.Background())
		defer cancel()

		assert.Equal(t, value, combinedCtx.Value(key))
		assert.NoError(t, combinedCtx.Err())
		_, ok := combinedCtx.Deadline()
		assert.False(t, ok)
	})

	t.Run("CancelledByPrimary", func(t *testing.T) {
		ctx1, cancel1 := context.WithCancel(context.Background())
		combinedCtx, cancelCombined := CombineContext(ctx1, context.Background())
		defer cancelCombined()

		cancel1()
		<-combinedCtx.Done()
		assert.ErrorIs(t, combinedCtx.Err(), context.Canceled)
	})

	t.Run("CancelledBySecondary", func(t *testing.T) {
		ctx2, cancel2 := context.WithCancel(context.Background())
		combinedCtx, cancelCombined := CombineContext(context.Background(), ctx2)
		defer cancelCombined()

		cancel2()
		assert.Eventually(t, func() bool { return combinedCtx.Err() != nil },
			100*time.Millisecond, 5*time.Millisecond)
		assert.ErrorIs(t, combinedCtx.Err(), context.Canceled)
	})

	t.Run("SecondaryDeadlineSurfacesAsDeadlineExceeded", func(t *testing.T) {
		ctx1, cancel1 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel1()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel2()

		combinedCtx, cancelCombined := CombineContext(ctx1, ctx2)
		defer cancelCombined()

		want, _ := ctx2.Deadline()
		got, ok := combinedCtx.Deadline()
		require.True(t, ok)
		assert.Equal(t, want, got)

		<-combinedCtx.Done()
		assert.ErrorIs(t, combinedCtx.Err(), context.DeadlineExceeded)
	})

	t.Run("SecondaryDeadlineNeverReportsCanceled", func(t *testing.T) {
		// The secondary's deadline and the combined context's timer fire at the same
		// instant; the combined error must be DeadlineExceeded every time.
		for i := 0; i < 200; i++ {
			ctx2, cancel2 := context.WithTimeout(context.Background(), time.Millisecond)
			combinedCtx, cancelCombined := CombineContext(context.Background(), ctx2)
			<-ctx2.Done()
			<-combinedCtx.Done()
			err := combinedCtx.Err()
			cancelCombined()
			cancel2()
			require.ErrorIs(t, err, context.DeadlineExceeded, "iteration %d", i)
		}
	})

	t.Run("PrimaryDeadlineWinsWhenEarlier", func(t *testing.T) {
		ctx1, cancel1 := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel1()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()

		combinedCtx, cancelCombined := CombineContext(ctx1, ctx2)
		defer cancelCombined()

		<-combinedCtx.Done()
		assert.ErrorIs(t, combinedCtx.Err(), context.DeadlineExceeded)
		assert.NoError(t, ctx2.Err())
	})

	t.Run("ExplicitCancellation", func(t *testing.T) {
		combinedCtx, cancelCombined := CombineContext(context.Background(), context.Background())
		cancelCombined()
		assert.ErrorIs(t, combinedCtx.Err(), context.Canceled)
	})
}
