package narrative

import (
	"fmt"
	"strings"

	"cotpulse/pkg/contracts/domain"
)

// LanguageName returns the English name of a supported language code and
// false for anything else.
func LanguageName(lang string) (string, bool) {
	switch strings.ToLower(lang) {
	case domain.LangEnglish, "":
		return "English", true
	case domain.LangArabic:
		return "Arabic", true
	case domain.LangFrench:
		return "French", true
	default:
		return "", false
	}
}

// BuildPrompt lists one line per record: name, net, change, longs, shorts.
// Raw cell text is used so the model sees what the report printed.
func BuildPrompt(records []domain.SnapshotRecord, language string) string {
	var b strings.Builder
	b.WriteString("Perform a rapid, institutional macro-assessment of this COT dataset:\n")
	for _, r := range records {
		fmt.Fprintf(&b, "%s: Net %s, Change %s, Longs %s, Shorts %s\n",
			r.Commodity, r.NetPositions, r.NetChange, r.LongPositions, r.ShortPositions)
	}
	fmt.Fprintf(&b, "\nLanguage: %s.\nFocus: Inter-market correlation and commercial positioning shifts.\n", language)
	return b.String()
}

// SystemInstruction pins the response to JSON and to the target language.
func SystemInstruction(language string) string {
	return fmt.Sprintf(`You are an elite Macro Intelligence Engine. Output strictly in JSON.
Your report must be high-impact and direct.
- marketScore, riskScore, liquidityScore, volatilityForecast: 0-100.
- assetAnalyses: breakdown for up to 8 primary assets; keyInsight is 2-3 dense sentences on positioning logic.
- strategicDeepDive: 5 sections (Macro context, Capital Flows, Hedging, Volatility, Strategy), about 100 words each.
- macroRiskFactors: impact 0-100.
- All text content MUST be in %s.`, language)
}
