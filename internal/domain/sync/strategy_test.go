package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrategyRegistry_ForFallsBackToDefault(t *testing.T) {
	reg := NewStrategyRegistry(DefaultStrategy())

	s := reg.For("unregistered")
	assert.Equal(t, "unregistered", s.ResourceType)
	assert.Equal(t, DirectionBidirectional, s.Direction)
	assert.Equal(t, 100, s.BatchSize)
	assert.Equal(t, PolicyKeepRemote, s.ConflictResolution)
}

func TestStrategyRegistry_RegisterFillsDefaults(t *testing.T) {
	reg := NewStrategyRegistry(DefaultStrategy())
	reg.Register(Strategy{ResourceType: "note", Priority: 5})

	s := reg.For("note")
	assert.Equal(t, 5, s.Priority)
	assert.Equal(t, 100, s.BatchSize, "zero batch size inherits the default")
	assert.Equal(t, DirectionBidirectional, s.Direction)
	assert.Equal(t, PolicyKeepRemote, s.ConflictResolution)
	assert.Equal(t, 3, s.Retry.MaxAttempts)
}

func TestStrategyRegistry_Ordered(t *testing.T) {
	reg := NewStrategyRegistry(DefaultStrategy())
	reg.Register(Strategy{ResourceType: "zebra", Priority: 10})
	reg.Register(Strategy{ResourceType: "apple", Priority: 10})
	reg.Register(Strategy{ResourceType: "urgent", Priority: 1})

	var order []string
	for _, s := range reg.Ordered() {
		order = append(order, s.ResourceType)
	}
	assert.Equal(t, []string{"urgent", "apple", "zebra"}, order)
}
