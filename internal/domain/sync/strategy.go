package sync

import "sort"

// StrategyRegistry holds the per-resource-type strategies for an engine.
// Types without an explicit strategy fall back to the default.
type StrategyRegistry struct {
	def        Strategy
	strategies map[string]Strategy
}

// DefaultStrategy is used for resource types with no registered strategy.
func DefaultStrategy() Strategy {
	return Strategy{
		Direction:          DirectionBidirectional,
		BatchSize:          100,
		Priority:           100,
		ConflictResolution: PolicyKeepRemote,
		Retry: RetryPolicy{
			MaxAttempts:       3,
			BackoffMultiplier: 2,
			MaxBackoffSeconds: 60,
		},
	}
}

func NewStrategyRegistry(def Strategy) *StrategyRegistry {
	if def.BatchSize <= 0 {
		def.BatchSize = DefaultStrategy().BatchSize
	}
	if def.Retry.MaxAttempts <= 0 {
		def.Retry = DefaultStrategy().Retry
	}
	return &StrategyRegistry{
		def:        def,
		strategies: make(map[string]Strategy),
	}
}

// Register adds or replaces the strategy for its resource type.
func (r *StrategyRegistry) Register(s Strategy) {
	if s.BatchSize <= 0 {
		s.BatchSize = r.def.BatchSize
	}
	if s.Retry.MaxAttempts <= 0 {
		s.Retry = r.def.Retry
	}
	if s.ConflictResolution == "" {
		s.ConflictResolution = r.def.ConflictResolution
	}
	if s.Direction == "" {
		s.Direction = r.def.Direction
	}
	r.strategies[s.ResourceType] = s
}

// For returns the strategy for a resource type.
func (r *StrategyRegistry) For(resourceType string) Strategy {
	if s, ok := r.strategies[resourceType]; ok {
		return s
	}
	s := r.def
	s.ResourceType = resourceType
	return s
}

// Ordered returns the registered strategies in ascending priority, ties
// broken by resource type name for a stable order.
func (r *StrategyRegistry) Ordered() []Strategy {
	out := make([]Strategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ResourceType < out[j].ResourceType
	})
	return out
}
