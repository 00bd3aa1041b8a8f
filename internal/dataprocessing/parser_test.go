package dataprocessing

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cotpulse/pkg/contracts/domain"
)

func TestSplitLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"plain", "A,B,C", []string{"A", "B", "C"}},
		{"quoted comma", `A,"B, C",D`, []string{"A", "B, C", "D"}},
		{"trims fields", "  Gold , 12 ", []string{"Gold", "12"}},
		{"empty line", "", []string{""}},
		{"trailing comma", "A,", []string{"A", ""}},
		{"quotes dropped", `"Gold","+1,200"`, []string{"Gold", "+1,200"}},
		{"unterminated quote", `A,"B,C`, []string{"A", "B,C"}},
		{"latin-1 bytes kept", "Caf\xe9 Arabica,\"1,2\"", []string{"Caf\xe9 Arabica", "1,2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitLine(tt.line))
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"$1,234.50", 1234.5},
		{"(500)", -500},
		{"+2.5%", 2.5},
		{"", 0},
		{"abc", 0},
		{"-30", -30},
		{`"+1,200"`, 1200},
		{" 1 000 ", 1000},
		{"(1,250.75)", -1250.75},
		{"12.5k", 12.5},
		{"1e3", 1000},
		{".5", 0.5},
		{"-", 0},
		{"--5", 0},
		{"NaN", 0},
		{"Infinity", 0},
		{"1e999", 0},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseValue(tt.raw))
		})
	}
}

func TestFindHeaderRow(t *testing.T) {
	groups := snapshotGroups()

	t.Run("title lines above header", func(t *testing.T) {
		lines := []string{
			"Commitment of Traders Report",
			"As of 2024-01-02",
			"Commodity,Net Position,Net Chg,Long,Chg,Short,Chg",
			"Gold,1,2,3,4,5,6",
		}
		assert.Equal(t, 2, FindHeaderRow(lines, groups))
	})

	t.Run("ties keep earliest line", func(t *testing.T) {
		lines := []string{"Commodity,Long", "Commodity,Long", "Gold,1"}
		assert.Equal(t, 0, FindHeaderRow(lines, groups))
	})

	t.Run("no match defaults to first line", func(t *testing.T) {
		lines := []string{"a,b", "c,d"}
		assert.Equal(t, 0, FindHeaderRow(lines, groups))
	})

	t.Run("only first fifteen lines considered", func(t *testing.T) {
		lines := make([]string, 0, 20)
		for range 16 {
			lines = append(lines, "x,y")
		}
		lines = append(lines, "Commodity,Net Position,Long,Short")
		assert.Equal(t, 0, FindHeaderRow(lines, groups))
	})
}

func TestResolveColumns(t *testing.T) {
	tests := []struct {
		name    string
		headers string
		want    ColumnRoleMap
	}{
		{
			name:    "bare change columns resolved by adjacency",
			headers: "Commodity,Long,Chg,Short,Chg",
			want: ColumnRoleMap{
				Commodity: 0, NetPosition: -1, NetChange: -1,
				LongPosition: 1, LongChange: 2, ShortPosition: 3, ShortChange: 4,
			},
		},
		{
			name:    "net change present",
			headers: "Commodity,Net Position,Net Chg,Long,Chg,Short,Chg",
			want: ColumnRoleMap{
				Commodity: 0, NetPosition: 1, NetChange: 2,
				LongPosition: 3, LongChange: 4, ShortPosition: 5, ShortChange: 6,
			},
		},
		{
			name:    "explicit aliases",
			headers: "Market,Long Positions,Long Change,Short Positions,Short Change,Net Pos,Net Change",
			want: ColumnRoleMap{
				Commodity: 0, NetPosition: 5, NetChange: 6,
				LongPosition: 1, LongChange: 2, ShortPosition: 3, ShortChange: 4,
			},
		},
		{
			name:    "commodity falls back to first column",
			headers: "Name,Net Position,Long,Short",
			want: ColumnRoleMap{
				Commodity: 0, NetPosition: 1, NetChange: -1,
				LongPosition: 2, LongChange: -1, ShortPosition: 3, ShortChange: -1,
			},
		},
		{
			name:    "commodity column not first",
			headers: "Code,Symbol,Longs,Shorts",
			want: ColumnRoleMap{
				Commodity: 1, NetPosition: -1, NetChange: -1,
				LongPosition: 2, LongChange: -1, ShortPosition: 3, ShortChange: -1,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveColumns(normalizeHeaders(SplitLine(tt.headers)))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestColumnRoleMapIndex(t *testing.T) {
	m := ColumnRoleMap{Commodity: 0, NetPosition: 1, NetChange: 2, LongPosition: 3, LongChange: 4, ShortPosition: 5, ShortChange: 6}
	for r := RoleCommodity; r <= RoleShortChange; r++ {
		assert.Equal(t, int(r), m.Index(r), r.String())
	}
	assert.Equal(t, Unresolved, m.Index(Role(99)))
	assert.Equal(t, "unknown", Role(99).String())
}

func TestParseSnapshot(t *testing.T) {
	t.Run("bare change headers", func(t *testing.T) {
		text := "Commodity,Net Position,Net Chg,Long,Chg,Short,Chg\r\n" +
			`Gold,"+1,200",+50,"3,000",+20,"1,800",-30` + "\r\n"

		got := ParseSnapshot(text)
		want := []domain.SnapshotRecord{{
			Commodity:      "Gold",
			NetPositions:   "+1,200",
			NumNetPos:      1200,
			NetChange:      "+50",
			NumNetChange:   50,
			LongPositions:  "3,000",
			NumLong:        3000,
			LongChange:     "+20",
			NumLongChange:  20,
			ShortPositions: "1,800",
			NumShort:       1800,
			ShortChange:    "-30",
			NumShortChange: -30,
		}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("ParseSnapshot mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("footer and short names dropped", func(t *testing.T) {
		text := "Commodity,Net Position\n" +
			"Gold,100\n" +
			"X,5\n" +
			"Downloaded from Barchart.com,0\n" +
			"Data by BARCHART,0\n" +
			"Silver,-40\n"

		got := ParseSnapshot(text)
		require.Len(t, got, 2)
		assert.Equal(t, "Gold", got[0].Commodity)
		assert.Equal(t, "Silver", got[1].Commodity)
		assert.Equal(t, -40.0, got[1].NumNetPos)
	})

	t.Run("name length counted in characters", func(t *testing.T) {
		tests := []struct {
			name string
			keep bool
		}{
			{"\U0001F33D", false},
			{"\u00e9", false},
			{"\u00e9\u00e9", true},
			{"\U0001F33D\U0001F33D", true},
			{"Ag", true},
		}
		for _, tt := range tests {
			got := ParseSnapshot("Commodity,Net Position\n" + tt.name + ",7\n")
			if tt.keep {
				require.Len(t, got, 1, tt.name)
				assert.Equal(t, tt.name, got[0].Commodity)
			} else {
				assert.Empty(t, got, tt.name)
			}
		}
	})

	t.Run("unresolved and missing cells read as zero", func(t *testing.T) {
		text := "Commodity,Net Position,Long\nGold,,\nSilver\n"

		got := ParseSnapshot(text)
		require.Len(t, got, 2)
		for _, r := range got {
			assert.Equal(t, "0", r.NetPositions)
			assert.Equal(t, "0", r.LongPositions)
			assert.Equal(t, "0", r.ShortPositions)
			assert.Equal(t, "0", r.ShortChange)
			assert.Zero(t, r.NumShort)
		}
	})

	t.Run("row not covering commodity column skipped", func(t *testing.T) {
		text := "Code,Market,Net Position\nA1,Gold,10\nB2\n"

		got := ParseSnapshot(text)
		require.Len(t, got, 1)
		assert.Equal(t, "Gold", got[0].Commodity)
	})

	t.Run("title rows before header", func(t *testing.T) {
		text := "Weekly COT Summary\n\n   \nMarket,Net Pos.,Net Change,Long_Pos,Short-Pos\nEuro FX,\"(12,500)\",$300,10,20\n"

		got := ParseSnapshot(text)
		require.Len(t, got, 1)
		assert.Equal(t, "Euro FX", got[0].Commodity)
		assert.Equal(t, -12500.0, got[0].NumNetPos)
		assert.Equal(t, 300.0, got[0].NumNetChange)
		assert.Equal(t, 10.0, got[0].NumLong)
		assert.Equal(t, 20.0, got[0].NumShort)
	})

	t.Run("short input", func(t *testing.T) {
		assert.Empty(t, ParseSnapshot(""))
		assert.Empty(t, ParseSnapshot("Commodity,Net Position\n\n  \n"))
	})

	t.Run("idempotent", func(t *testing.T) {
		text := "Commodity,Long,Chg,Short,Chg\nGold,1,2,3,4\nSilver,5,6,7,8\n"
		if diff := cmp.Diff(ParseSnapshot(text), ParseSnapshot(text)); diff != "" {
			t.Errorf("repeated parse differs:\n%s", diff)
		}
	})
}

func TestSnapshotLayout(t *testing.T) {
	layout, ok := SnapshotLayout("Report\nCommodity,Net Pos,Long,Chg,Short,Chg\nGold,9,1,2,3,4\n")
	require.True(t, ok)
	assert.Equal(t, 1, layout.HeaderRow)
	assert.Equal(t, []string{"Commodity", "Net Pos", "Long", "Chg", "Short", "Chg"}, layout.Headers)
	assert.Equal(t, 3, layout.Columns.LongChange)
	assert.Equal(t, 5, layout.Columns.ShortChange)
	assert.Equal(t, map[string]string{
		"commodity":      "Commodity",
		"net_position":   "Net Pos",
		"long_position":  "Long",
		"long_change":    "Chg",
		"short_position": "Short",
		"short_change":   "Chg",
	}, layout.Detected, "unresolved net change is left out")

	_, ok = SnapshotLayout("Commodity")
	assert.False(t, ok)
}

func TestParseSeries(t *testing.T) {
	t.Run("metadata columns excluded", func(t *testing.T) {
		text := "Commodity,01/02/2024,12/26/2023,52W High,52W Low,Change,% Chg,Open Interest,Avg\n" +
			"Gold,\"1,200\",900,2000,100,5,1%,3000,7\n"

		got := ParseSeries(text)
		want := []domain.SeriesRecord{{
			Commodity: "Gold",
			Weeks: []domain.WeekEntry{
				{Label: "01/02/2024", Raw: "1,200", Value: 1200},
				{Label: "12/26/2023", Raw: "900", Value: 900},
				{Label: "Open Interest", Raw: "3000", Value: 3000},
				{Label: "Avg", Raw: "7", Value: 7},
			},
		}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("ParseSeries mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("name column not first", func(t *testing.T) {
		text := "ID,Market,Jan 02,Dec 26\n7,Silver,10,(4)\n"

		got := ParseSeries(text)
		require.Len(t, got, 1)
		assert.Equal(t, "Silver", got[0].Commodity)
		require.Len(t, got[0].Weeks, 2)
		assert.Equal(t, "Jan 02", got[0].Weeks[0].Label)
		assert.Equal(t, -4.0, got[0].Weeks[1].Value)
	})

	t.Run("missing cells read as zero", func(t *testing.T) {
		text := "Asset,W1 2024,W2 2024,W3 2024\nGold,5,,\n"

		got := ParseSeries(text)
		require.Len(t, got, 1)
		require.Len(t, got[0].Weeks, 3)
		assert.Equal(t, "0", got[0].Weeks[1].Raw)
		assert.Equal(t, "0", got[0].Weeks[2].Raw)
		assert.Zero(t, got[0].Weeks[2].Value)
	})

	t.Run("footer rows dropped", func(t *testing.T) {
		text := "Commodity,2024-01-02\nGold,1\nDownloaded from Barchart.com\nZ,2\n"

		got := ParseSeries(text)
		require.Len(t, got, 1)
		assert.Equal(t, "Gold", got[0].Commodity)
	})

	t.Run("short input", func(t *testing.T) {
		assert.Empty(t, ParseSeries(""))
		assert.Empty(t, ParseSeries("Commodity,2024-01-02"))
	})

	t.Run("high and change percent skipped", func(t *testing.T) {
		got := ParseSeries("Commodity,2024-01-05,2024-01-12,High,Change %\nSilver,100,150,200,5%\n")
		want := []domain.SeriesRecord{{
			Commodity: "Silver",
			Weeks: []domain.WeekEntry{
				{Label: "2024-01-05", Raw: "100", Value: 100},
				{Label: "2024-01-12", Raw: "150", Value: 150},
			},
		}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("ParseSeries mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("metadata matched on the lower-cased header only", func(t *testing.T) {
		got := ParseSeries("Commodity,2024-01-05,Open Interest,OpenInterest\nSilver,100,9000,9100\n")
		require.Len(t, got, 1)
		require.Len(t, got[0].Weeks, 2)
		assert.Equal(t, "Open Interest", got[0].Weeks[1].Label)
		assert.Equal(t, 9000.0, got[0].Weeks[1].Value)
	})

	t.Run("non-utf8 names kept", func(t *testing.T) {
		got := ParseSeries("Commodity,2024-01-05\nCaf\xe9,3\n")
		require.Len(t, got, 1)
		assert.Equal(t, "Caf\xe9", got[0].Commodity)
	})

	t.Run("idempotent", func(t *testing.T) {
		text := "Market,2024-01-05,2024-01-12,52W High\nGold,1,2,3\nSilver,\"(4)\",5,6\n"
		if diff := cmp.Diff(ParseSeries(text), ParseSeries(text)); diff != "" {
			t.Errorf("repeated parse differs:\n%s", diff)
		}
	})
}
