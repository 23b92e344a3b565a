// Package triage implements the symptom triage core: the emergency red-flag
// scan, the specialty keyword classifier, the one-shot triage agent, and the
// multi-turn conversation state machine.
//
// The emergency scan in this file is a deliberately conservative,
// high-recall/low-precision lexical filter. It is the safety net that
// overrides any softer AI judgment downstream: an external language-model
// classification is only trusted when this scan reports no emergency.
package triage

import (
	"regexp"
	"strings"
)

// RedFlagTerms is the fixed vocabulary of phrases that always trigger an
// emergency classification. Matching is a case-insensitive substring scan.
// Kept as plain data so clinical vocabulary can be tuned without touching
// the scan itself.
var RedFlagTerms = []string{
	"chest pain",
	"severe bleeding",
	"shortness of breath",
	"difficulty breathing",
	"severe headache",
	"stroke",
	"loss of consciousness",
	"severe allergic reaction",
	"severe burns",
	"choking",
	"severe abdominal pain",
	"severe trauma",
	"suicide",
	"overdose",
	"heart attack",
	"seizure",
	"vomiting blood",
	"cannot breathe",
	"unconscious",
	"severe head injury",
}

// urgencyPatterns is the secondary net for generic urgency language that the
// fixed vocabulary does not cover.
var urgencyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)can'?t breathe`),
	regexp.MustCompile(`(?i)severe pain`),
	regexp.MustCompile(`(?i)losing consciousness`),
	regexp.MustCompile(`(?i)life threatening`),
	regexp.MustCompile(`(?i)\b911\b`),
	regexp.MustCompile(`(?i)\bemergency\b`),
	regexp.MustCompile(`(?i)\burgent\b`),
	regexp.MustCompile(`(?i)\bcritical\b`),
}

// EmergencyResult is the outcome of the red-flag scan.
type EmergencyResult struct {
	IsEmergency  bool
	Confidence   float64
	MatchedTerms []string
}

// DetectEmergency scans text for red-flag phrases and urgency patterns.
//
// Any match means emergency. Confidence grows with the number of distinct
// matches: 0.5 floor on the first match, +0.2 per additional distinct term,
// capped at 0.95. Text with no match returns a zero-confidence negative.
func DetectEmergency(text string) EmergencyResult {
	lower := strings.ToLower(text)

	seen := make(map[string]struct{})
	var matched []string
	add := func(term string) {
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		matched = append(matched, term)
	}

	for _, term := range RedFlagTerms {
		if strings.Contains(lower, term) {
			add(term)
		}
	}
	for _, pat := range urgencyPatterns {
		if m := pat.FindString(lower); m != "" {
			add(strings.ToLower(m))
		}
	}

	if len(matched) == 0 {
		return EmergencyResult{}
	}

	conf := 0.5 + 0.2*float64(len(matched)-1)
	if conf > 0.95 {
		conf = 0.95
	}
	return EmergencyResult{
		IsEmergency:  true,
		Confidence:   conf,
		MatchedTerms: matched,
	}
}
