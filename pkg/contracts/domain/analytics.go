package domain

// Overview summarizes a snapshot dataset for the dashboard header cards.
type Overview struct {
	TotalCount   int    `json:"total_count"`
	Bullish      int    `json:"bullish"`
	Bearish      int    `json:"bearish"`
	MostActive   string `json:"most_active"`
	ActiveChange string `json:"active_change"`
}

// TrendPoint is one chronological point of an asset's positioning trend.
type TrendPoint struct {
	Label    string   `json:"name"`
	Position float64  `json:"pos"`
	Velocity float64  `json:"velocity"`
	SMA      *float64 `json:"sma"`
	Original string   `json:"original"`
}

// SeriesStats describes the distribution of an asset's weekly values.
type SeriesStats struct {
	Count    int     `json:"count"`
	Latest   float64 `json:"latest"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Median   float64 `json:"median"`
	COTIndex float64 `json:"cot_index"`
}

// AssetDetail bundles everything the detail card shows for one asset.
type AssetDetail struct {
	Commodity string          `json:"commodity"`
	Position  *SnapshotRecord `json:"position,omitempty"`
	History   *SeriesRecord   `json:"history,omitempty"`
	Trend     []TrendPoint    `json:"trend,omitempty"`
	Stats     *SeriesStats    `json:"stats,omitempty"`
}
