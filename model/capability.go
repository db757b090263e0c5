// Package model provides capability-based model selection for planning tiers.
// Instead of hardcoding model names, callers specify capabilities (strategic,
// tactical, operational) and the registry resolves them to available models
// with fallback chains.
package model

// Capability represents a semantic capability for model selection.
// Instead of specifying "gpt-4o" or "gemini-pro", callers specify the
// planning tier the model serves.
type Capability string

const (
	// CapabilityStrategic is for high-level goal decomposition and reasoning.
	CapabilityStrategic Capability = "strategic"

	// CapabilityTactical is for breaking objectives into concrete steps.
	CapabilityTactical Capability = "tactical"

	// CapabilityOperational is for binding steps to tool invocations.
	CapabilityOperational Capability = "operational"

	// CapabilityFast is for quick responses, simple tasks.
	CapabilityFast Capability = "fast"
)

// TierCapabilities maps planner tier names to their capability.
var TierCapabilities = map[string]Capability{
	"strategic":   CapabilityStrategic,
	"tactical":    CapabilityTactical,
	"operational": CapabilityOperational,
}

// CapabilityForTier returns the capability for a planner tier.
// Returns CapabilityFast as fallback for unknown tiers.
func CapabilityForTier(tier string) Capability {
	if c, ok := TierCapabilities[tier]; ok {
		return c
	}
	return CapabilityFast
}

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityStrategic, CapabilityTactical, CapabilityOperational, CapabilityFast:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for invalid values.
func ParseCapability(s string) Capability {
	c := Capability(s)
	if c.IsValid() {
		return c
	}
	return ""
}
