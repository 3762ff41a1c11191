package inmemdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/practice"
)

var errRollback = errors.New("rollback")

func TestDB_InTx(t *testing.T) {
	db := Open()
	repo := NewPracticeRepository(db)
	ctx := context.Background()

	err := db.InTx(ctx, func(exec core.DBExecutor) error {
		_, err := repo.CreateEvaluator(ctx, practice.Evaluator{Name: "Eva", Email: "eva@ubiobio.cl"}, exec)
		require.NoError(t, err)
		return errRollback
	})
	assert.Equal(t, errRollback, err)
	evs, err := repo.QueryEvaluators(ctx)
	require.NoError(t, err)
	assert.Empty(t, evs)

	err = db.InTx(ctx, func(exec core.DBExecutor) error {
		_, err := repo.CreateEvaluator(ctx, practice.Evaluator{Name: "Eva", Email: "eva@ubiobio.cl"}, exec)
		return err
	})
	require.NoError(t, err)
	evs, err = repo.QueryEvaluators(ctx)
	require.NoError(t, err)
	assert.Len(t, evs, 1)
}

func TestDB_rollbackKeepsOutsideWrites(t *testing.T) {
	db := Open()
	repo := NewPracticeRepository(db)
	ctx := context.Background()

	started, proceed := make(chan struct{}), make(chan struct{})
	txDone := make(chan error)
	go func() {
		txDone <- db.InTx(ctx, func(exec core.DBExecutor) error {
			close(started)
			<-proceed
			return errRollback
		})
	}()
	<-started

	written := make(chan error)
	go func() {
		_, err := repo.CreateEvaluator(ctx, practice.Evaluator{Name: "Zoe", Email: "zoe@ubiobio.cl"})
		written <- err
	}()

	select {
	case <-written:
		t.Fatal("write outside the transaction did not wait for it")
	case <-time.After(50 * time.Millisecond):
	}
	close(proceed)

	assert.Equal(t, errRollback, <-txDone)
	require.NoError(t, <-written)

	evs, err := repo.QueryEvaluators(ctx)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "zoe@ubiobio.cl", evs[0].Email)
}
