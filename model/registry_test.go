package model

import (
	"encoding/json"
	"testing"
)

func TestNewDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry()

	endpoints := r.ListEndpoints()
	if len(endpoints) < 3 {
		t.Errorf("expected at least 3 endpoints, got %d", len(endpoints))
	}

	for _, cap := range []Capability{CapabilityStrategic, CapabilityTactical, CapabilityOperational, CapabilityFast} {
		if got := r.Resolve(cap); got == "" {
			t.Errorf("Resolve(%q) returned empty model", cap)
		}
	}
}

func TestRegistryResolve(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		capability Capability
		expected   string
	}{
		{CapabilityStrategic, "gpt-4o"},
		{CapabilityTactical, "gpt-4o-mini"},
		{CapabilityOperational, "gpt-4o-mini"},
		{CapabilityFast, "groq-llama"},
		{Capability("unknown"), "llama3.2"}, // Falls back to default
	}

	for _, tt := range tests {
		t.Run(string(tt.capability), func(t *testing.T) {
			got := r.Resolve(tt.capability)
			if got != tt.expected {
				t.Errorf("Resolve(%q) = %q, want %q", tt.capability, got, tt.expected)
			}
		})
	}
}

func TestRegistryGetFallbackChain(t *testing.T) {
	r := NewDefaultRegistry()

	chain := r.GetFallbackChain(CapabilityStrategic)

	// Should have both preferred and fallback models
	if len(chain) < 2 {
		t.Fatalf("expected at least 2 models in chain, got %d", len(chain))
	}

	// First should be the preferred model
	if chain[0] != "gpt-4o" {
		t.Errorf("first in chain should be gpt-4o, got %q", chain[0])
	}

	// Should include the local fallback
	hasLlama := false
	for _, m := range chain {
		if m == "llama3.2" {
			hasLlama = true
			break
		}
	}
	if !hasLlama {
		t.Error("expected llama3.2 in fallback chain")
	}
}

func TestRegistryGetFallbackChainUnknownCapability(t *testing.T) {
	r := NewDefaultRegistry()

	chain := r.GetFallbackChain(Capability("unknown"))
	if len(chain) != 1 || chain[0] != "llama3.2" {
		t.Errorf("expected default-model chain, got %v", chain)
	}
}

func TestRegistryGetEndpoint(t *testing.T) {
	r := NewDefaultRegistry()

	ep := r.GetEndpoint("llama3.2")
	if ep == nil {
		t.Fatal("expected endpoint for llama3.2")
	}
	if ep.Provider != "ollama" {
		t.Errorf("expected provider ollama, got %q", ep.Provider)
	}

	if r.GetEndpoint("nonexistent") != nil {
		t.Error("expected nil for unknown endpoint")
	}
}

func TestRegistrySetters(t *testing.T) {
	r := NewRegistry(nil, nil)

	r.SetEndpoint("custom", &EndpointConfig{Provider: "openai", Model: "custom-model"})
	r.SetCapability(CapabilityStrategic, &CapabilityConfig{Preferred: []string{"custom"}})
	r.SetDefault("custom")

	if got := r.Resolve(CapabilityStrategic); got != "custom" {
		t.Errorf("Resolve = %q, want custom", got)
	}
	if got := r.Resolve(CapabilityFast); got != "custom" {
		t.Errorf("Resolve for unconfigured capability should use default, got %q", got)
	}

	ep := r.GetEndpoint("custom")
	if ep == nil || ep.Model != "custom-model" {
		t.Errorf("unexpected endpoint: %+v", ep)
	}
}

func TestRegistryMarshalJSON(t *testing.T) {
	r := NewDefaultRegistry()

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal registry: %v", err)
	}

	var decoded struct {
		Capabilities map[string]*CapabilityConfig `json:"capabilities"`
		Endpoints    map[string]*EndpointConfig   `json:"endpoints"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal registry JSON: %v", err)
	}

	if len(decoded.Capabilities) != 4 {
		t.Errorf("expected 4 capabilities in JSON, got %d", len(decoded.Capabilities))
	}
	if len(decoded.Endpoints) == 0 {
		t.Error("expected endpoints in JSON")
	}
}
