package component

// Tag is the kind an entity was instantiated with ("falling", "collectible").
type Tag struct {
	Kind string
}

// Inactive marks a pooled entity that is parked: not moved, not queried.
type Inactive struct{}
