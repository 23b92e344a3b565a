// Package triage – conversation state machine.
//
// This file implements the multi-turn intake dialogue. The machine is
// stateless between calls: the caller supplies the ConversationState and
// receives it back updated, so transcript ownership stays with the session
// record. On every turn the local emergency scan runs first and does not
// depend on the optional language-model collaborator; safety is preserved
// even during a collaborator outage.
//
// Observability: ProcessMessage is OpenTelemetry-instrumented; spans include
// the current stage and completion flag.
package triage

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinova/go-triage-backend/internal/domain"
	"github.com/clinova/go-triage-backend/internal/llm"
)

// Actor names recorded in the audit trail.
const (
	actorEmergency = "emergency-detection"
	actorIntake    = "intake"
	actorSpecialty = "specialty-classification"
	actorAssist    = "assistant-llm"
)

// ApologyMessage is the fixed degraded response when the language-model
// collaborator fails. The stage holds and the turn is not complete.
const ApologyMessage = "I apologize, but I'm having trouble right now. Please try again in a moment. For medical emergencies, please call 911."

// GreetingMessage opens a fresh conversation and doubles as the symptoms
// question.
const GreetingMessage = "Hello! I'm here to help you find the right medical care. I'll ask you a few quick questions to understand your situation better. What brings you here today?"

// Intake questions, one per missing field, asked strictly one at a time in
// priority order: symptoms, age, gender, conditions, duration, severity.
const (
	questionSymptoms   = "What symptoms or health concerns are you experiencing?"
	questionAge        = "Thank you for sharing that. Can you tell me your age?"
	questionGender     = "And what is your gender?"
	questionConditions = "Do you have any existing medical conditions like diabetes, hypertension, or heart disease? If none, just say none."
	questionDuration   = "How long have you been experiencing these symptoms?"
	questionSeverity   = "Would you describe the severity as mild, moderate, or severe?"
)

// recommendationMarkers feed the heuristic completion signal: a
// recommendation-style reply plus a minimum transcript length marks the
// conversation complete even when field extraction alone is ambiguous.
var recommendationMarkers = []string{"recommend", "suggest", "should see", "appointment", "specialist"}

// minExchangesForCompletion is the transcript floor for heuristic completion.
const minExchangesForCompletion = 3

// Turn is the outcome of processing one inbound message.
type Turn struct {
	Response         string
	NewState         domain.ConversationState
	IsComplete       bool
	TriageResult     *domain.TriageResult
	SuggestedActions []string
}

// StateMachine drives the intake dialogue. Provider is optional: when set,
// it phrases the outgoing text conversationally; when nil or failing, fixed
// question templates are used and the turn degrades safely.
type StateMachine struct {
	Provider llm.Provider
}

// NewStateMachine constructs a StateMachine with an optional provider.
func NewStateMachine(p llm.Provider) *StateMachine {
	return &StateMachine{Provider: p}
}

// ProcessMessage advances the dialogue by one turn.
//
// Order of evaluation:
//  1. Emergency scan over the full accumulated patient transcript. Positive
//     means the stage jumps to emergency, a fixed crisis response is emitted,
//     and the conversation permanently stops asking questions.
//  2. Opportunistic field extraction, then exactly one question for the first
//     missing field.
//  3. With all fields present, specialty classification, a recommendation
//     with the fixed medical disclaimer, and a terminal summary stage.
//
// Every transition appends one audit entry; the trail is never rewritten.
func (m *StateMachine) ProcessMessage(ctx context.Context, message string, state domain.ConversationState) Turn {
	tr := otel.Tracer("triage/StateMachine")
	ctx, span := tr.Start(ctx, "ProcessMessage",
		trace.WithAttributes(attribute.String("stage", string(state.Stage))),
	)
	defer span.End()

	if state.Stage == "" {
		state.Stage = domain.StageIntake
	}
	state.History = append(state.History, domain.Exchange{Role: domain.SenderPatient, Content: message})

	// A conversation already in the emergency stage never resumes questions.
	if state.Stage == domain.StageEmergency {
		state.History = append(state.History, domain.Exchange{Role: domain.SenderAssistant, Content: EmergencyMessage})
		span.SetAttributes(attribute.Bool("complete", true))
		return Turn{
			Response:         EmergencyMessage,
			NewState:         state,
			IsComplete:       true,
			TriageResult:     state.TriageResult,
			SuggestedActions: emergencyActions(),
		}
	}

	patientText := state.PatientText()

	// 1) Local emergency scan over the whole patient transcript. The
	// assistant's own wording is excluded so fixed response text cannot trip
	// the scan.
	if em := DetectEmergency(patientText); em.IsEmergency {
		return m.emergencyTurn(span, state, em)
	}

	// 2) Opportunistic extraction, newest reply handled specially for bare
	// numeric age answers.
	state.Patient = ExtractProfile(state.Patient, patientText)
	if state.Patient.Age == 0 {
		if age, ok := ExtractBareAge(message); ok {
			state.Patient.Age = age
		}
	}
	state.Intake = ExtractIntake(state.Intake, patientText)

	if question, first := m.nextQuestion(&state); question != "" {
		return m.questionTurn(ctx, span, state, question, first)
	}

	// 3) All fields collected: classify and close out.
	return m.recommendationTurn(ctx, span, state)
}

// emergencyTurn transitions to the terminal emergency stage.
func (m *StateMachine) emergencyTurn(span trace.Span, state domain.ConversationState, em EmergencyResult) Turn {
	conf := em.Confidence
	if conf < 0.9 {
		conf = 0.9 // short-circuit verdicts are reported with high confidence
	}
	reason := "Emergency indicators found: " + strings.Join(em.MatchedTerms, ", ")

	state.Stage = domain.StageEmergency
	state.Triage = domain.TriageVerdict{IsEmergency: true, Reason: reason, Confidence: conf}
	state.Intake.RedFlags = true
	state.AppendAudit(actorEmergency, "emergency detected", reason, conf)

	result := &domain.TriageResult{
		IsEmergency: true,
		Confidence:  conf,
		Explanation: "Emergency symptoms detected. Please seek immediate medical attention.",
		Reasoning:   reason,
		RedFlags:    em.MatchedTerms,
	}
	state.TriageResult = result
	state.IsComplete = true

	response := EmergencyMessage + "\n\n" + MedicalDisclaimer
	state.History = append(state.History, domain.Exchange{Role: domain.SenderAssistant, Content: response})

	span.SetAttributes(attribute.Bool("emergency", true))
	return Turn{
		Response:         response,
		NewState:         state,
		IsComplete:       true,
		TriageResult:     result,
		SuggestedActions: emergencyActions(),
	}
}

// nextQuestion returns the question for the first missing required field, in
// fixed priority order, or "" when intake is complete. first reports whether
// this is the opening turn (greeting instead of a bare question).
func (m *StateMachine) nextQuestion(state *domain.ConversationState) (question string, first bool) {
	switch {
	case state.Intake.Symptoms == "":
		if len(state.History) <= 1 {
			return GreetingMessage, true
		}
		return questionSymptoms, false
	case state.Patient.Age == 0:
		return questionAge, false
	case state.Patient.Gender == "":
		return questionGender, false
	case !state.Patient.ConditionsAsked:
		return questionConditions, false
	case state.Intake.Duration == "":
		return questionDuration, false
	case state.Intake.Severity == "":
		return questionSeverity, false
	}
	return "", false
}

// questionTurn emits exactly one question for the first missing field. When a
// provider is configured it rephrases the question conversationally; provider
// failure degrades to the fixed apology and holds the stage.
func (m *StateMachine) questionTurn(ctx context.Context, span trace.Span, state domain.ConversationState, question string, first bool) Turn {
	response := question
	if m.Provider != nil && !first {
		phrased, err := m.phrase(ctx, state, question)
		if err != nil {
			state.AppendAudit(actorAssist, "collaborator failure", "language model unavailable, degraded to apology", 0)
			state.History = append(state.History, domain.Exchange{Role: domain.SenderAssistant, Content: ApologyMessage})
			span.SetAttributes(attribute.Bool("degraded", true))
			return Turn{Response: ApologyMessage, NewState: state, IsComplete: false}
		}
		response = phrased
	}

	state.Stage = domain.StageIntake
	state.AppendAudit(actorIntake, "data collection", "gathering patient information", 0.85)
	state.History = append(state.History, domain.Exchange{Role: domain.SenderAssistant, Content: response})

	// Heuristic completion: a recommendation-style reply on a long enough
	// transcript closes the conversation even if extraction was ambiguous.
	if looksLikeRecommendation(response) && exchangeCount(state.History) >= minExchangesForCompletion {
		return m.closeOut(span, state, response)
	}

	return Turn{Response: response, NewState: state, IsComplete: false}
}

// recommendationTurn runs the specialty classifier and closes the dialogue.
func (m *StateMachine) recommendationTurn(ctx context.Context, span trace.Span, state domain.ConversationState) Turn {
	sp := ClassifySpecialty(state.Intake.Symptoms + " " + state.PatientText())

	reasoning := "Keyword analysis suggests " + sp.Specialty
	if len(sp.MatchedKeywords) > 0 {
		reasoning += " based on: " + strings.Join(sp.MatchedKeywords, ", ")
	}

	response := "Based on your symptoms, I recommend seeing a " + sp.Specialty +
		" specialist. Would you like help finding an appointment?\n\n" + MedicalDisclaimer

	if m.Provider != nil {
		phrased, err := m.phrase(ctx, state, "All data collected. Recommend a "+sp.Specialty+" specialist and offer to book an appointment.")
		if err != nil {
			state.AppendAudit(actorAssist, "collaborator failure", "language model unavailable, degraded to apology", 0)
			state.History = append(state.History, domain.Exchange{Role: domain.SenderAssistant, Content: ApologyMessage})
			span.SetAttributes(attribute.Bool("degraded", true))
			return Turn{Response: ApologyMessage, NewState: state, IsComplete: false}
		}
		response = phrased + "\n\n" + MedicalDisclaimer
	}

	state.AppendAudit(actorSpecialty, "specialty recommended", reasoning, sp.Confidence)
	state.History = append(state.History, domain.Exchange{Role: domain.SenderAssistant, Content: response})
	return m.closeOutWith(span, state, response, sp, reasoning)
}

// closeOut finishes a heuristically-completed conversation by classifying
// whatever symptom text has accumulated.
func (m *StateMachine) closeOut(span trace.Span, state domain.ConversationState, response string) Turn {
	sp := ClassifySpecialty(state.Intake.Symptoms + " " + state.PatientText())
	reasoning := "Heuristic completion on recommendation-style reply"
	return m.closeOutWith(span, state, response, sp, reasoning)
}

func (m *StateMachine) closeOutWith(span trace.Span, state domain.ConversationState, response string, sp SpecialtyResult, reasoning string) Turn {
	result := &domain.TriageResult{
		IsEmergency:        false,
		Confidence:         sp.Confidence,
		Explanation:        "Based on your symptoms, you may benefit from seeing a " + sp.Specialty + " specialist.",
		Reasoning:          reasoning + ". " + MedicalDisclaimer,
		SuggestedSpecialty: sp.Specialty,
	}

	state.Stage = domain.StageSummary
	state.Triage.RecommendedSpecialty = sp.Specialty
	state.Triage.Confidence = sp.Confidence
	state.TriageResult = result
	state.IsComplete = true

	span.SetAttributes(attribute.Bool("complete", true), attribute.String("specialty", sp.Specialty))
	return Turn{
		Response:     response,
		NewState:     state,
		IsComplete:   true,
		TriageResult: result,
		SuggestedActions: []string{
			"Schedule appointment with " + sp.Specialty,
			"Prepare a list of your symptoms",
		},
	}
}

// phrase asks the collaborator to word the next action conversationally.
// Empty or whitespace-only output counts as unparsable.
func (m *StateMachine) phrase(ctx context.Context, state domain.ConversationState, action string) (string, error) {
	prompt := llm.BuildIntakePrompt(llm.IntakeContext{
		Collected: collectedSummary(state),
		History:   historyLines(state.History),
		Action:    action,
	})
	out, err := m.Provider.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", llm.ErrUnparsableOutput
	}
	return out, nil
}

// collectedSummary renders the already-known fields so the collaborator does
// not re-ask them.
func collectedSummary(state domain.ConversationState) []string {
	var out []string
	if state.Patient.Name != "" {
		out = append(out, "Name: "+state.Patient.Name)
	}
	if state.Patient.Age > 0 {
		out = append(out, "Age known")
	}
	if state.Patient.Gender != "" {
		out = append(out, "Gender: "+state.Patient.Gender)
	}
	if state.Patient.ConditionsAsked {
		out = append(out, "Conditions: "+strings.Join(state.Patient.KnownConditions, ", "))
	}
	if state.Intake.Symptoms != "" {
		out = append(out, "Symptoms described")
	}
	if state.Intake.Duration != "" {
		out = append(out, "Duration: "+state.Intake.Duration)
	}
	if state.Intake.Severity != "" {
		out = append(out, "Severity: "+state.Intake.Severity)
	}
	return out
}

func historyLines(history []domain.Exchange) []string {
	out := make([]string, 0, len(history))
	for _, e := range history {
		role := "Patient"
		if e.Role == domain.SenderAssistant {
			role = "Assistant"
		}
		out = append(out, role+": "+e.Content)
	}
	return out
}

// looksLikeRecommendation reports whether a reply reads like a specialist
// recommendation.
func looksLikeRecommendation(response string) bool {
	lower := strings.ToLower(response)
	for _, marker := range recommendationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// exchangeCount counts transcript entries.
func exchangeCount(history []domain.Exchange) int { return len(history) }

func emergencyActions() []string {
	return []string{"Call 911 immediately", "Go to the Emergency Room"}
}
