package summary

import "unicode/utf8"

// EstimateTokens approximates a token count as one token per four
// characters, rounded up. Non-empty text counts at least one token.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// TokenCounts are the estimated sizes of an assembled context.
type TokenCounts struct {
	SystemSummaries int `json:"system_summaries_tokens"`
	Raw             int `json:"raw_tokens"`
	Total           int `json:"total_tokens"`
}
