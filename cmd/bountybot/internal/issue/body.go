// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package issue

import (
	"regexp"
	"strings"
)

// Bounty issue templates have changed over time, so sections are tried in
// order and the first match wins. Bodies written in the GitHub web UI use
// CRLF line endings.
var (
	rewardsPatterns = compile(
		`Estimate suggested reward\r\n\r\n(.*?)\r\n\r\n`,
		`Estimate suggested reward\r\n(.*?)\r\n\r\n`,
		`Estimate suggested reward\n\n(.*?)\n\n`,
		`Estimate suggested reward\r\n(.*)$`,
		`Estimate suggested reward\n\n(.*)$`,
		`REWARD\r\n\r\n(.*?)\r\n\r\n`,
		`Reward\r\n\r\n(.*?)\r\n\r\n`,
		`Reward\r\n\r\n(.*)$`,
		`Reward\n\n(.*?)\n\n`,
		`Reward\r\n(.*)$`,
	)
	summaryPatterns = compile(
		`Summary\r\n(.*?)\r\n\r\n`,
		`Summary\n\n(.*?)\n\n`,
	)
	bulletReplacer = strings.NewReplacer("- ", "• ", "* ", "• ")
)

func compile(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(`(?s)` + p)
	}
	return res
}

// ExtractRewards returns the reward section of an issue body with list
// bullets replaced by "•", or an empty string if there is none.
func ExtractRewards(body string) string {
	return extract(rewardsPatterns, bulletReplacer.Replace(body))
}

// ExtractSummary returns the summary section of an issue body, or an empty
// string if there is none.
func ExtractSummary(body string) string {
	return extract(summaryPatterns, body)
}

func extract(patterns []*regexp.Regexp, body string) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(body); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}
