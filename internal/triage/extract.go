// Package triage – transcript field extraction.
//
// Best-effort parsers that pull intake fields (age, gender, duration,
// severity, chronic conditions, name) out of free text. Extraction failure
// never blocks the question loop: an unparsed field simply stays missing and
// is asked again on the next turn.
package triage

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/clinova/go-triage-backend/internal/domain"
)

var (
	nameRE     = regexp.MustCompile(`(?:[Mm]y name is|[Ii]'?m|[Ii] am|[Cc]all me)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)
	ageRE      = regexp.MustCompile(`(?i)(?:i'?m|i am|age is|i am aged|aged)\s*(\d{1,3})`)
	bareAgeRE  = regexp.MustCompile(`^\s*(\d{1,3})\s*(?:years? old)?\s*$`)
	maleRE     = regexp.MustCompile(`(?i)\b(male|man)\b`)
	femaleRE   = regexp.MustCompile(`(?i)\b(female|woman)\b`)
	otherSexRE = regexp.MustCompile(`(?i)\b(non-?binary|other)\b`)
	durationRE = regexp.MustCompile(`(?i)(\d+)\s*(day|week|month|year|hour|minute)s?\b`)
	noCondRE   = regexp.MustCompile(`(?i)\b(none|no conditions?|no medical (history|conditions?)|nothing)\b`)
)

// knownConditions are the chronic conditions recognized verbatim in text.
var knownConditions = []string{"diabetes", "hypertension", "heart disease", "asthma", "copd"}

// minSymptomLen guards against treating a bare greeting as a symptom report.
const minSymptomLen = 10

// maxSymptomRunes caps the stored symptom text.
const maxSymptomRunes = 500

// ExtractProfile scans the patient's transcript text and fills any profile
// fields it can recognize. Existing values are never overwritten; the stage
// machine treats extracted fields as answered and skips their questions.
func ExtractProfile(p domain.PatientProfile, patientText string) domain.PatientProfile {
	lower := strings.ToLower(patientText)

	if p.Name == "" {
		if m := nameRE.FindStringSubmatch(patientText); m != nil {
			p.Name = strings.TrimSpace(m[1])
		}
	}
	if p.Age == 0 {
		if m := ageRE.FindStringSubmatch(patientText); m != nil {
			if age, err := strconv.Atoi(m[1]); err == nil && age > 0 && age < 120 {
				p.Age = age
			}
		}
	}
	if p.Gender == "" {
		switch {
		case maleRE.MatchString(patientText) && !femaleRE.MatchString(patientText):
			p.Gender = "male"
		case femaleRE.MatchString(patientText):
			p.Gender = "female"
		case otherSexRE.MatchString(patientText):
			p.Gender = "other"
		}
	}

	var conditions []string
	for _, cond := range knownConditions {
		if strings.Contains(lower, cond) {
			conditions = append(conditions, cond)
		}
	}
	if len(conditions) > 0 {
		p.KnownConditions = conditions
		p.ConditionsAsked = true
	} else if noCondRE.MatchString(patientText) {
		// An explicit "none" counts as answered; an empty list is not re-asked.
		p.ConditionsAsked = true
	}

	return p
}

// ExtractBareAge parses a reply that is nothing but a number ("29",
// "29 years old"), which patients commonly send to the age question.
func ExtractBareAge(reply string) (int, bool) {
	m := bareAgeRE.FindStringSubmatch(reply)
	if m == nil {
		return 0, false
	}
	age, err := strconv.Atoi(m[1])
	if err != nil || age <= 0 || age >= 120 {
		return 0, false
	}
	return age, true
}

// ExtractIntake scans the patient's transcript text and fills any intake
// fields it can recognize. Symptom text accumulates from patient utterances
// once there is enough of it to be a plausible complaint.
func ExtractIntake(in domain.IntakeSnapshot, patientText string) domain.IntakeSnapshot {
	lower := strings.ToLower(patientText)

	if in.Symptoms == "" && len(strings.TrimSpace(patientText)) >= minSymptomLen {
		s := strings.TrimSpace(patientText)
		if runes := []rune(s); len(runes) > maxSymptomRunes {
			// Cap by runes, never bytes, so multi-byte text stays valid UTF-8.
			s = string(runes[:maxSymptomRunes])
		}
		in.Symptoms = s
	}

	if in.Duration == "" {
		if m := durationRE.FindStringSubmatch(patientText); m != nil {
			in.Duration = m[1] + " " + strings.ToLower(m[2]) + "(s)"
		}
	}

	if in.Severity == "" {
		switch {
		case strings.Contains(lower, "severe") || strings.Contains(lower, "extreme") || strings.Contains(lower, "unbearable"):
			in.Severity = "severe"
		case strings.Contains(lower, "moderate") || strings.Contains(lower, "significant"):
			in.Severity = "moderate"
		case strings.Contains(lower, "mild") || strings.Contains(lower, "slight") || strings.Contains(lower, "minor"):
			in.Severity = "mild"
		}
	}

	if !in.RedFlags {
		in.RedFlags = DetectEmergency(patientText).IsEmergency
	}

	return in
}
