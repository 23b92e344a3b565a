// Package triage – content safety.
//
// Self-harm language is intercepted before any triage runs. It short-circuits
// to a fixed crisis-resource message and is terminal for the turn; no
// surrounding error handling may suppress this path.
package triage

import (
	"regexp"
	"strings"
)

// selfHarmPatterns flag potentially harmful mental-health indicators.
var selfHarmPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)suicide`),
	regexp.MustCompile(`(?i)suicidal`),
	regexp.MustCompile(`(?i)kill myself`),
	regexp.MustCompile(`(?i)end my life`),
	regexp.MustCompile(`(?i)want to die`),
	regexp.MustCompile(`(?i)self harm`),
	regexp.MustCompile(`(?i)hurting myself`),
}

// CrisisMessage is the fixed crisis-resource response for self-harm content.
const CrisisMessage = `IMMEDIATE MENTAL HEALTH SUPPORT NEEDED

If you're having thoughts of self-harm or suicide, please reach out for immediate help:

- National Suicide Prevention Lifeline: 988 or 1-800-273-8255
- Crisis Text Line: Text HOME to 741741
- Emergency Services: Call 911

You are not alone. Professional help is available 24/7.
Please contact a mental health professional or go to your nearest emergency room immediately.`

// ContainsSelfHarm reports whether the text carries self-harm indicators.
func ContainsSelfHarm(text string) bool {
	for _, pat := range selfHarmPatterns {
		if pat.MatchString(text) {
			return true
		}
	}
	return false
}

// maxInputRunes caps patient input length before it reaches any classifier.
const maxInputRunes = 2000

var (
	angleRE  = regexp.MustCompile(`[<>]`)
	jsURLRE  = regexp.MustCompile(`(?i)javascript:`)
	harmfulR = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<script`),
		regexp.MustCompile(`(?i)vbscript:`),
		regexp.MustCompile(`(?i)onload=`),
		regexp.MustCompile(`(?i)onerror=`),
		regexp.MustCompile(`(?i)<iframe`),
		regexp.MustCompile(`(?i)<embed`),
		regexp.MustCompile(`(?i)<object`),
	}
)

// SanitizeInput trims, caps, and scrubs patient input of markup fragments.
// Returns "" when nothing usable remains; the caller rejects that as invalid.
func SanitizeInput(input string) string {
	s := strings.TrimSpace(input)
	if runes := []rune(s); len(runes) > maxInputRunes {
		s = string(runes[:maxInputRunes])
	}
	for _, pat := range harmfulR {
		s = pat.ReplaceAllString(s, "")
	}
	s = jsURLRE.ReplaceAllString(s, "")
	s = angleRE.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// sessionIDRE matches UUIDs and other opaque URL-safe tokens.
var sessionIDRE = regexp.MustCompile(`^[A-Za-z0-9_-]{10,40}$`)

// ValidSessionID reports whether the id looks like a token this service
// could have issued. Malformed ids are a validation error, distinct from
// the not-found outcome of a well-formed but unknown id.
func ValidSessionID(id string) bool {
	return sessionIDRE.MatchString(id)
}
