package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB_Initialize_SingleFlight(t *testing.T) {
	db, _ := newTestDB(t)
	storeDB := newDBFromSQL(db)

	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	storeDB.initFn = func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
		return nil
	}

	const concurrent = 5
	var wg sync.WaitGroup
	errs := make([]error, concurrent)
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = storeDB.Initialize(context.Background())
		}(i)
	}

	// wait until the first caller is inside the init function, then let
	// everyone through
	<-started
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls),
		"concurrent first-use callers must share one in-flight initialization")
}

func TestDB_Initialize_IdempotentAfterSuccess(t *testing.T) {
	db, _ := newTestDB(t)
	storeDB := newDBFromSQL(db)

	var calls int32
	storeDB.initFn = func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}

	require.NoError(t, storeDB.Initialize(context.Background()))
	require.NoError(t, storeDB.Initialize(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDB_Initialize_FailureIsRetryable(t *testing.T) {
	db, _ := newTestDB(t)
	storeDB := newDBFromSQL(db)

	var calls int32
	storeDB.initFn = func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("transient")
		}
		return nil
	}

	require.Error(t, storeDB.Initialize(context.Background()))
	require.NoError(t, storeDB.Initialize(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCreateLocalDBFileIfNotExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.db")

	require.NoError(t, createLocalDBFileIfNotExists(path))
	_, err := os.Stat(path)
	require.NoError(t, err)

	// second call with the file already present is a no-op
	require.NoError(t, createLocalDBFileIfNotExists(path))
}
