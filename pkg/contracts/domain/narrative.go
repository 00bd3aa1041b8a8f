package domain

// Language codes accepted for generated commentary.
const (
	LangEnglish = "en"
	LangArabic  = "ar"
	LangFrench  = "fr"
)

// PositioningMatrix scores five positioning behaviours from 0 to 100.
type PositioningMatrix struct {
	Accumulation         float64 `json:"accumulation"`
	Distribution         float64 `json:"distribution"`
	RiskAversion         float64 `json:"riskAversion"`
	YieldSeeking         float64 `json:"yieldSeeking"`
	SpeculativeIntensity float64 `json:"speculativeIntensity"`
}

// AssetInsight is the generated read on one asset.
type AssetInsight struct {
	Name            string  `json:"name"`
	SentimentScore  float64 `json:"sentimentScore"`
	ConvictionLevel float64 `json:"convictionLevel"`
	Signal          string  `json:"signal"`
	KeyInsight      string  `json:"keyInsight"`
}

// DeepDiveSection is one headed paragraph of the strategic deep dive.
type DeepDiveSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// DeepDive is the long-form part of an analysis.
type DeepDive struct {
	Title    string            `json:"title"`
	Sections []DeepDiveSection `json:"sections"`
}

// RiskFactor is a named macro risk and its impact score.
type RiskFactor struct {
	Factor string  `json:"factor"`
	Impact float64 `json:"impact"`
}

// Analysis is the structured market commentary generated for a snapshot.
type Analysis struct {
	Lang               string            `json:"lang"`
	MarketScore        float64           `json:"marketScore"`
	RiskScore          float64           `json:"riskScore"`
	LiquidityScore     float64           `json:"liquidityScore"`
	VolatilityForecast float64           `json:"volatilityForecast"`
	DominantTheme      string            `json:"dominantTheme"`
	Matrix             PositioningMatrix `json:"matrix"`
	AssetAnalyses      []AssetInsight    `json:"assetAnalyses"`
	StrategicDeepDive  DeepDive          `json:"strategicDeepDive"`
	MacroRiskFactors   []RiskFactor      `json:"macroRiskFactors"`
}
