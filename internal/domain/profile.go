package domain

import "time"

// Tier identifies where a returned profile came from.
type Tier string

const (
	TierHot     Tier = "hot"
	TierDurable Tier = "durable"
	TierFresh   Tier = "fresh"
)

// Archetype is the categorical behavior label assigned to a wallet.
type Archetype string

const (
	ArchetypeDiamondHands     Archetype = "Diamond Hands"
	ArchetypeDegenApe         Archetype = "Degen Ape"
	ArchetypeFOMOChaser       Archetype = "FOMO Chaser"
	ArchetypeWhaleStrategist  Archetype = "Whale Strategist"
	ArchetypeSwingTrader      Archetype = "Swing Trader"
	ArchetypeScalper          Archetype = "Scalper"
	ArchetypeBalancedInvestor Archetype = "Balanced Investor"
	ArchetypeInsufficientData Archetype = "Insufficient Data"
)

// ScoreName is a key of WalletProfile.Scores.
type ScoreName string

const (
	ScoreRisk       ScoreName = "risk"
	ScoreFOMO       ScoreName = "fomo"
	ScorePatience   ScoreName = "patience"
	ScoreConviction ScoreName = "conviction"
	ScoreDegen      ScoreName = "degen"
	ScoreWhisperer  ScoreName = "whisperer"
)

// ScoreNames lists every score key in a stable order.
var ScoreNames = []ScoreName{
	ScoreRisk, ScoreFOMO, ScorePatience, ScoreConviction, ScoreDegen, ScoreWhisperer,
}

// Diversification labels.
const (
	DiversificationConcentrated    = "concentrated"
	DiversificationBalanced        = "balanced"
	DiversificationOverDiversified = "over_diversified"
	DiversificationUnknown         = "unknown"
)

// WalletProfile is the computed behavioral profile of a wallet.
// Corresponds to wallet_profiles table in PostgreSQL.
type WalletProfile struct {
	WalletAddress string            `json:"wallet_address"`
	ComputedAt    time.Time         `json:"computed_at"`
	SourceTier    Tier              `json:"source_tier"`
	Scores        map[ScoreName]int `json:"scores"`
	Archetype     Archetype         `json:"archetype"`
	TradeCount    int               `json:"trade_count"`
	Confidence    float64           `json:"confidence"`
	ModelVersion  string            `json:"model_version"`
	RunID         string            `json:"run_id"`
	Analytics     ProfileAnalytics  `json:"analytics"`
}

// ProfileAnalytics carries the intermediate measurements behind the scores.
type ProfileAnalytics struct {
	SizingConsistency        int                `json:"sizing_consistency"`
	Diversification          int                `json:"diversification"`
	DiversificationLabel     string             `json:"diversification_label"`
	CategoryExposure         map[string]float64 `json:"category_exposure,omitempty"`
	TopHoldingsShare         float64            `json:"top_holdings_share"`
	TradesPerDay             float64            `json:"trades_per_day"`
	RoundTripShare           float64            `json:"round_trip_share"`
	HighFrequency            bool               `json:"high_frequency"`
	MedianHoldHours          float64            `json:"median_hold_hours"`
	SpikeEntryRate           float64            `json:"spike_entry_rate"`
	MemecoinShare            float64            `json:"memecoin_share"`
	UnresolvedCategoryTrades int                `json:"unresolved_category_trades"`
	PricedTrades             int                `json:"priced_trades"`
	InputDigest              string             `json:"input_digest,omitempty"`
}

// Clone returns a deep copy of p.
func (p *WalletProfile) Clone() *WalletProfile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Scores != nil {
		c.Scores = make(map[ScoreName]int, len(p.Scores))
		for k, v := range p.Scores {
			c.Scores[k] = v
		}
	}
	if p.Analytics.CategoryExposure != nil {
		c.Analytics.CategoryExposure = make(map[string]float64, len(p.Analytics.CategoryExposure))
		for k, v := range p.Analytics.CategoryExposure {
			c.Analytics.CategoryExposure[k] = v
		}
	}
	return &c
}

// Age returns how long ago the profile was computed.
func (p *WalletProfile) Age(now time.Time) time.Duration {
	return now.Sub(p.ComputedAt)
}
