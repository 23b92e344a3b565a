// Package triage – one-shot analysis.
//
// AnalyzeSymptoms is the non-conversational entry point: a single pass over
// one message, used where no dialogue state exists (webhook auto-replies).
// It shares the red-flag vocabulary and specialty table with the
// conversational path so both entry points triage identically.
package triage

import (
	"strings"

	"github.com/clinova/go-triage-backend/internal/domain"
)

// MedicalDisclaimer is appended to every completed (non-crisis) assessment.
const MedicalDisclaimer = "This AI assistant does not replace professional medical advice. Always consult with a healthcare provider for proper diagnosis and treatment."

// EmergencyMessage is the fixed response for a detected emergency. It does
// not depend on specialty.
const EmergencyMessage = `MEDICAL EMERGENCY DETECTED

This may be a medical emergency. Please:
- Go to the Emergency Department immediately, or
- Call 911

Do not wait. Seek immediate medical attention.`

// AnalyzeSymptoms classifies a single message: emergency scan first, then
// specialty classification for the non-emergency case. Stateless.
func AnalyzeSymptoms(text string) domain.TriageResult {
	normalized := strings.ToLower(strings.TrimSpace(text))

	if em := DetectEmergency(normalized); em.IsEmergency {
		return domain.TriageResult{
			IsEmergency: true,
			Confidence:  em.Confidence,
			Explanation: "EMERGENCY DETECTED: Please seek immediate medical attention at the nearest emergency room or call 911.",
			Reasoning:   "Emergency indicators found: " + strings.Join(em.MatchedTerms, ", ") + ". " + MedicalDisclaimer,
			RedFlags:    em.MatchedTerms,
		}
	}

	sp := ClassifySpecialty(normalized)
	reasoning := "Analysis suggests " + sp.Specialty
	if len(sp.MatchedKeywords) > 0 {
		reasoning += " based on: " + strings.Join(sp.MatchedKeywords, ", ")
	}
	return domain.TriageResult{
		IsEmergency:        false,
		Confidence:         sp.Confidence,
		Explanation:        "Based on your symptoms, you may benefit from seeing a " + sp.Specialty + " specialist.",
		Reasoning:          reasoning + ". " + MedicalDisclaimer,
		SuggestedSpecialty: sp.Specialty,
	}
}

// followUpQuestions holds 2-3 canned follow-ups per specialty for the
// one-shot path, where there is no dialogue to collect details in.
var followUpQuestions = map[string][]string{
	"Cardiology": {
		"How long have you been experiencing these symptoms?",
		"Do you have any family history of heart disease?",
		"Are you currently taking any medications?",
	},
	"Dermatology": {
		"When did you first notice this skin condition?",
		"Has the area changed in size or color recently?",
		"Do you have any known allergies?",
	},
	"Orthopedics": {
		"Did this pain start after an injury or gradually?",
		"On a scale of 1-10, how would you rate your pain?",
		"Does the pain worsen with movement or rest?",
	},
}

// genericFollowUps cover specialties without a dedicated question set.
var genericFollowUps = []string{
	"How long have you been experiencing these symptoms?",
	"Have you tried any treatments or medications?",
	"Is there anything that makes the symptoms better or worse?",
}

// FollowUpQuestions returns the canned follow-ups for a specialty, falling
// back to the generic set.
func FollowUpQuestions(specialty string) []string {
	if qs, ok := followUpQuestions[specialty]; ok {
		return qs
	}
	return genericFollowUps
}

// healthKeywords gate the one-shot path to health-related input.
var healthKeywords = []string{
	"pain", "symptom", "hurt", "ache", "feel", "sick", "doctor", "medical",
	"health", "diagnosis", "treatment", "medication", "hospital", "clinic",
	"fever", "headache", "nausea", "tired", "fatigue", "dizzy", "rash",
	"cough", "sore", "infection", "injury", "broken", "swollen", "bleeding",
}

// IsHealthRelated reports whether the message plausibly describes a health
// concern.
func IsHealthRelated(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range healthKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
