package orchestrator

import (
	"time"

	"wallet-profiler/internal/domain"
)

// TTLPolicy decides how long a profile stays valid in a tier, measured
// from its ComputedAt. A non-positive TTL means the profile must not be
// served from, or written to, that tier.
type TTLPolicy interface {
	TTL(p *domain.WalletProfile, tier domain.Tier) time.Duration
}

// FixedTTLPolicy applies one TTL per tier.
type FixedTTLPolicy struct {
	Hot     time.Duration
	Durable time.Duration
}

// TTL implements TTLPolicy.
func (f FixedTTLPolicy) TTL(_ *domain.WalletProfile, tier domain.Tier) time.Duration {
	if tier == domain.TierHot {
		return f.Hot
	}
	return f.Durable
}

// ClassTTLPolicy assigns TTLs per data class.
//
// The hot tier serves the full view, including price and holdings
// dependent figures, so it lives for Volatile. The durable tier answers
// for the behavioral classification and lives for Behavioral. A profile
// with no valuation carries no volatile figures and uses Behavioral on
// both tiers. Low-confidence profiles are capped at LowConfidence, and a
// profile scored by another model version is never served.
type ClassTTLPolicy struct {
	Volatile      time.Duration
	Behavioral    time.Duration
	LowConfidence time.Duration
	// ConfidenceFloor is the confidence below which LowConfidence applies.
	ConfidenceFloor float64
	// ModelVersion is the current scoring model; empty accepts any version.
	ModelVersion string
}

// DefaultClassTTLPolicy returns the production TTLs for modelVersion.
func DefaultClassTTLPolicy(modelVersion string) ClassTTLPolicy {
	return ClassTTLPolicy{
		Volatile:        5 * time.Minute,
		Behavioral:      6 * time.Hour,
		LowConfidence:   2 * time.Minute,
		ConfidenceFloor: 0.5,
		ModelVersion:    modelVersion,
	}
}

// TTL implements TTLPolicy.
func (c ClassTTLPolicy) TTL(p *domain.WalletProfile, tier domain.Tier) time.Duration {
	if p == nil {
		return 0
	}
	if c.ModelVersion != "" && p.ModelVersion != c.ModelVersion {
		return 0
	}

	ttl := c.Behavioral
	if tier == domain.TierHot && p.Analytics.DiversificationLabel != domain.DiversificationUnknown {
		ttl = min(ttl, c.Volatile)
	}
	if p.Confidence < c.ConfidenceFloor {
		ttl = min(ttl, c.LowConfidence)
	}
	return ttl
}
