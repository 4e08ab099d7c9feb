package domain

type Tier string

const (
	Tier_StrongBuy Tier = "STRONG_BUY"
	Tier_Buy       Tier = "BUY"
	Tier_Watchlist Tier = "WATCHLIST"
	Tier_Monitor   Tier = "MONITOR"
	Tier_Reject    Tier = "REJECT"
)

// Priority orders tiers for ranking; higher is better.
func (t Tier) Priority() int {
	switch t {
	case Tier_StrongBuy:
		return 5
	case Tier_Buy:
		return 4
	case Tier_Watchlist:
		return 3
	case Tier_Monitor:
		return 2
	case Tier_Reject:
		return 1
	}
	return 0
}

func ParseTier(s string) (Tier, bool) {
	switch Tier(s) {
	case Tier_StrongBuy, Tier_Buy, Tier_Watchlist, Tier_Monitor, Tier_Reject:
		return Tier(s), true
	case "SKIP":
		return Tier_Reject, true
	}
	return "", false
}

type RiskStatus string

const (
	RiskStatus_Approved RiskStatus = "APPROVED"
	RiskStatus_Rejected RiskStatus = "REJECTED"
)

type AnalysisResult struct {
	Instrument      string   `json:"instrument"`
	Price           float64  `json:"price"`
	Thesis          string   `json:"thesis"`
	ConvictionScore float64  `json:"convictionScore"`
	EntryPrice      float64  `json:"entryPrice"`
	TargetPrice     float64  `json:"targetPrice"`
	StopLoss        float64  `json:"stopLoss"`
	TotalScore      *float64 `json:"totalScore,omitempty"`
	Tier            *Tier    `json:"tier,omitempty"`
	TechScore       *float64 `json:"techScore,omitempty"`
	SentimentScore  *float64 `json:"sentimentScore,omitempty"`
}

// VettedResult is an analysis plus the risk reviewer's verdict. RiskStatus is
// nil when the review could not be completed; that is "not evaluated", never
// approval.
type VettedResult struct {
	AnalysisResult
	RiskStatus      *RiskStatus `json:"riskStatus,omitempty"`
	RiskCriticism   string      `json:"riskCriticism,omitempty"`
	AdjustedStop    float64     `json:"adjustedStop"`
	SuggestedShares int64       `json:"suggestedShares"`
	CacheHit        bool        `json:"cacheHit"`
}

func (v VettedResult) IsApproved() bool {
	return v.RiskStatus != nil && *v.RiskStatus == RiskStatus_Approved
}

type AllocationLine struct {
	Instrument    string  `json:"instrument"`
	ShareCount    int64   `json:"shareCount"`
	WeightPercent float64 `json:"weightPercent"`
	Rationale     string  `json:"rationale"`
}

type Allocation struct {
	Lines         []AllocationLine `json:"lines"`
	RemainingCash float64          `json:"remainingCash"`
	TotalCapital  float64          `json:"totalCapital"`
}

type InstrumentState string

const (
	InstrumentState_Analyzed InstrumentState = "ANALYZED"
	InstrumentState_Failed   InstrumentState = "FAILED"
)

// InstrumentFailure is reported for every instrument dropped from a research
// batch.
type InstrumentFailure struct {
	Instrument string `json:"instrument"`
	Stage      string `json:"stage"`
	Reason     string `json:"reason"`
}
