package service

import (
	"regexp"
	"strings"
)

const maxSearchResults = 5

var sentenceBoundary = regexp.MustCompile(`[.!?]+`)

// SearchSentences returns up to limit trimmed transcript sentences that
// contain query, case-insensitively, in transcript order.
func SearchSentences(transcript, query string, limit int) []string {
	needle := strings.ToLower(query)
	ret := make([]string, 0, limit)
	for _, piece := range sentenceBoundary.Split(transcript, -1) {
		sentence := strings.TrimSpace(piece)
		if sentence == "" {
			continue
		}
		if strings.Contains(strings.ToLower(sentence), needle) {
			ret = append(ret, sentence)
			if len(ret) == limit {
				break
			}
		}
	}
	return ret
}
