package enrichment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTaskPayloadUniqueID(t *testing.T) {
	first := TaskPayload{MatchID: "123", Attempt: 1}
	second := TaskPayload{MatchID: "123", Attempt: 2}

	assert.Equal(t, "enrich:123:1", first.UniqueID())
	assert.Equal(t, "enrich:123:2", second.UniqueID())
	assert.NotEqual(t, first.UniqueID(), second.UniqueID(),
		"each attempt needs its own task identity")
}

func TestTaskPayloadFinal(t *testing.T) {
	assert.False(t, TaskPayload{Attempt: 1}.Final())
	assert.True(t, TaskPayload{Attempt: 2}.Final())
}

func TestConfigValidate(t *testing.T) {
	valid := &Config{
		Queue:          "enrichment",
		Concurrency:    5,
		FirstDelay:     2 * time.Second,
		SecondDelay:    10 * time.Second,
		AttemptTimeout: 30 * time.Second,
	}
	assert.NoError(t, valid.Validate())

	inverted := *valid
	inverted.SecondDelay = time.Second
	assert.ErrorIs(t, inverted.Validate(), ErrInvalidDelays)

	noWorkers := *valid
	noWorkers.Concurrency = 0
	assert.ErrorIs(t, noWorkers.Validate(), ErrInvalidConcurrency)
}
