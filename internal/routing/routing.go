// Package routing assigns tickets to a team by counting team keywords in
// their text. It has no state and needs no training.
package routing

import (
	"strings"
	"unicode"

	"github.com/linnemanlabs/sift/internal/label"
)

// keywordTable is the fixed team vocabulary. Multi-word entries match as a
// contiguous token sequence.
var keywordTable = map[label.Team][]string{
	label.TeamNetwork: {
		"network", "wifi", "connection", "internet", "router", "switch", "lan",
		"wan", "ethernet", "connectivity", "vpn", "dns", "ip", "subnet",
		"firewall", "ping",
	},
	label.TeamHardware: {
		"hardware", "computer", "laptop", "desktop", "monitor", "keyboard",
		"mouse", "printer", "scanner", "device", "broken", "physical",
		"motherboard", "cpu", "ram", "memory", "hard drive", "ssd", "usb",
		"battery", "power", "charger",
	},
	label.TeamSoftware: {
		"software", "application", "program", "install", "update", "upgrade",
		"bug", "error", "crash", "freeze", "slow", "performance", "windows",
		"mac", "office", "excel", "word", "outlook", "browser", "chrome",
		"firefox", "edge",
	},
	label.TeamSecurity: {
		"security", "password", "access", "permission", "virus", "malware",
		"spam", "phishing", "breach", "unauthorized", "login", "authentication",
		"encryption", "secure", "vulnerability", "threat", "attack", "hack",
	},
}

// compiled holds each keyword pre-split into tokens.
var compiled = func() map[label.Team][][]string {
	out := make(map[label.Team][][]string, len(keywordTable))
	for team, kws := range keywordTable {
		for _, kw := range kws {
			out[team] = append(out[team], tokenize(kw))
		}
	}
	return out
}()

// Keywords returns a copy of the keyword list for team.
func Keywords(team label.Team) []string {
	kws := keywordTable[team]
	out := make([]string, len(kws))
	copy(out, kws)
	return out
}

// Scores counts whole-token keyword matches per team. Every team is present
// in the result, with zero when nothing matched.
func Scores(text string) map[label.Team]int {
	tokens := tokenize(text)
	scores := make(map[label.Team]int, len(compiled))
	for _, team := range label.Teams() {
		n := 0
		for _, kw := range compiled[team] {
			n += countSeq(tokens, kw)
		}
		scores[team] = n
	}
	return scores
}

// Assign returns the team with the strictly highest score. No match at all,
// or a tie at the top, falls back to label.DefaultTeam.
func Assign(text string) label.Team {
	best, bestScore, tied := label.DefaultTeam, 0, false
	for team, score := range Scores(text) {
		switch {
		case score > bestScore:
			best, bestScore, tied = team, score, false
		case score == bestScore && score > 0:
			tied = true
		}
	}
	if bestScore == 0 || tied {
		return label.DefaultTeam
	}
	return best
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// countSeq counts non-overlapping occurrences of seq in tokens.
func countSeq(tokens, seq []string) int {
	if len(seq) == 0 {
		return 0
	}
	n := 0
	for i := 0; i+len(seq) <= len(tokens); {
		if matchAt(tokens, seq, i) {
			n++
			i += len(seq)
			continue
		}
		i++
	}
	return n
}

func matchAt(tokens, seq []string, i int) bool {
	for j, s := range seq {
		if tokens[i+j] != s {
			return false
		}
	}
	return true
}
