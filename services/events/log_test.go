package events

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practicas-ubb/practicas/core"
	logsvc "github.com/practicas-ubb/practicas/services/logger"
)

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher(discardLogger(core.NewTestConfig()))
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, core.NewEvent(core.EventApplicationApproved, map[string]interface{}{"application_id": 1})))
	require.NoError(t, p.Publish(ctx, core.NewEvent(core.EventPracticeClosed, map[string]interface{}{"practice_id": 2})))

	assert.Equal(t, []string{core.EventApplicationApproved, core.EventPracticeClosed}, p.Names())
	evts := p.Published()
	require.Len(t, evts, 2)
	assert.False(t, evts[0].OccurredAt.IsZero())

	err := p.Publish(ctx, core.NewEvent("broken", map[string]interface{}{"ch": make(chan int)}))
	assert.Error(t, err)
	assert.Len(t, p.Published(), 2)

	p.Reset()
	assert.Empty(t, p.Names())
}

func discardLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}
