// Package triage – specialty classification.
//
// A data-driven keyword scorer maps free symptom text to the best-guess
// medical specialty. The table is an ordered slice, not a map: iteration
// order is part of the contract, because score ties keep the first-seen
// specialty and the result must be deterministic for identical input.
package triage

import "strings"

// DefaultSpecialty is returned when no keyword matches at all.
const DefaultSpecialty = "Internal Medicine"

// defaultSpecialtyConfidence is the fixed confidence for the no-match case.
const defaultSpecialtyConfidence = 0.3

// SpecialtyEntry pairs a specialty with its trigger keywords.
type SpecialtyEntry struct {
	Specialty string
	Keywords  []string
}

// SpecialtyTable maps symptom keywords to specialties, in fixed evaluation
// order. Longer keywords are more specific and score double (see
// ClassifySpecialty). Clinical vocabulary will need tuning; edit here.
var SpecialtyTable = []SpecialtyEntry{
	{"Cardiology", []string{
		"heart", "palpitations", "cardiac", "chest discomfort", "irregular heartbeat",
		"high blood pressure", "hypertension", "heart murmur", "chest tightness",
	}},
	{"Dermatology", []string{
		"rash", "skin", "acne", "mole", "eczema", "psoriasis", "dermatitis",
		"skin condition", "itchy skin", "skin lesion", "birthmark",
	}},
	{"Orthopedics", []string{
		"joint pain", "back pain", "knee pain", "shoulder pain", "arthritis",
		"bone", "fracture", "sprain", "muscle pain", "sports injury",
	}},
	{"Neurology", []string{
		"headache", "migraine", "dizziness", "numbness", "tingling",
		"memory problems", "nerve pain", "neurological", "brain",
	}},
	{"Gastroenterology", []string{
		"stomach pain", "digestive", "nausea", "vomiting", "diarrhea",
		"constipation", "acid reflux", "heartburn", "abdominal pain",
	}},
	{"Pulmonology", []string{
		"cough", "breathing problems", "asthma", "lung", "respiratory",
		"wheezing", "bronchitis", "pneumonia",
	}},
	{"Ophthalmology", []string{
		"eye", "vision", "blurry vision", "eye pain", "eye infection",
		"glasses", "contacts", "visual problems",
	}},
	{"ENT", []string{
		"ear", "nose", "throat", "sinus", "hearing", "tinnitus",
		"sore throat", "ear infection", "nasal congestion",
	}},
	{"Psychiatry", []string{
		"depression", "anxiety", "stress", "mental health", "panic",
		"mood", "sleep problems", "insomnia", "therapy",
	}},
	{"Gynecology", []string{
		"women health", "period", "menstrual", "pregnancy", "gynecological",
		"pelvic pain", "reproductive health",
	}},
	{"Urology", []string{
		"urinary", "bladder", "kidney", "prostate", "urination problems",
		"kidney stones", "urinary tract infection",
	}},
	{"Endocrinology", []string{
		"diabetes", "thyroid", "hormone", "blood sugar", "metabolism",
		"insulin", "endocrine",
	}},
}

// SpecialtyResult is the outcome of the keyword classification.
type SpecialtyResult struct {
	Specialty       string
	Confidence      float64
	MatchedKeywords []string
}

// ClassifySpecialty scores the text against every specialty's keywords and
// returns the strictly-highest scorer. Keywords longer than 8 characters
// weigh 2, others 1. Ties keep the first-seen specialty. With no match at
// all, the result is Internal Medicine at a fixed 0.3 confidence; otherwise
// confidence is min(0.9, 0.1*score).
func ClassifySpecialty(text string) SpecialtyResult {
	lower := strings.ToLower(text)

	best := SpecialtyResult{Specialty: DefaultSpecialty, Confidence: defaultSpecialtyConfidence}
	bestScore := 0

	for _, entry := range SpecialtyTable {
		score := 0
		var matched []string
		for _, kw := range entry.Keywords {
			if strings.Contains(lower, kw) {
				matched = append(matched, kw)
				if len(kw) > 8 {
					score += 2
				} else {
					score++
				}
			}
		}
		if score > bestScore {
			bestScore = score
			conf := 0.1 * float64(score)
			if conf > 0.9 {
				conf = 0.9
			}
			best = SpecialtyResult{
				Specialty:       entry.Specialty,
				Confidence:      conf,
				MatchedKeywords: matched,
			}
		}
	}

	return best
}
