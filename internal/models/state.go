package models

import (
	"encoding/json"
	"strings"
)

// Step is the informational position of a run in the chain.
type Step string

const (
	StepStart    Step = "start"
	StepExtract  Step = "extract"
	StepClassify Step = "classify"
	StepMatch    Step = "match"
	StepQA       Step = "qa"
	StepComplete Step = "complete"
)

// ResumeInput holds resume content as either decoded text or raw bytes.
type ResumeInput struct {
	text  string
	raw   []byte
	isRaw bool
}

// TextInput wraps decoded resume text.
func TextInput(text string) *ResumeInput {
	return &ResumeInput{text: text}
}

// BytesInput wraps raw uploaded bytes.
func BytesInput(raw []byte) *ResumeInput {
	return &ResumeInput{raw: raw, isRaw: true}
}

// Text returns the decoded text when the input is textual.
func (r *ResumeInput) Text() (string, bool) {
	if r == nil || r.isRaw {
		return "", false
	}
	return r.text, true
}

// Bytes returns the raw content when the input is binary.
func (r *ResumeInput) Bytes() ([]byte, bool) {
	if r == nil || !r.isRaw {
		return nil, false
	}
	return r.raw, true
}

// Empty reports whether there is no usable content.
func (r *ResumeInput) Empty() bool {
	if r == nil {
		return true
	}
	if r.isRaw {
		return len(r.raw) == 0
	}
	return strings.TrimSpace(r.text) == ""
}

// MarshalJSON emits the text form; raw bytes are not echoed back.
func (r *ResumeInput) MarshalJSON() ([]byte, error) {
	if text, ok := r.Text(); ok {
		return json.Marshal(text)
	}
	return []byte("null"), nil
}

// State is threaded through every stage of one run. Exactly one stage owns
// it at a time.
type State struct {
	RunID            string            `json:"run_id,omitempty"`
	ResumeText       *ResumeInput      `json:"resume_text,omitempty"`
	CandidateProfile *CandidateProfile `json:"candidate_profile,omitempty"`
	JobMatches       []*MatchResult    `json:"job_matches,omitempty"`
	CurrentStep      Step              `json:"current_step"`
	Error            string            `json:"error,omitempty"`

	// Err keeps the typed cause of Error.
	Err error `json:"-"`
}

// NewState creates a state at the start of the chain.
func NewState(input *ResumeInput) *State {
	return &State{ResumeText: input, CurrentStep: StepStart}
}

// Failed reports whether the run already carries an error.
func (s *State) Failed() bool {
	return s.Error != ""
}

// Fail records err as the terminal error. The first error wins.
func (s *State) Fail(err error) {
	if err == nil || s.Failed() {
		return
	}
	s.Err = err
	s.Error = err.Error()
}

// Advance moves the run to step unless it already failed.
func (s *State) Advance(step Step) {
	if s.Failed() {
		return
	}
	s.CurrentStep = step
}

// Complete reports whether the run reached the end without an error.
func (s *State) Complete() bool {
	return !s.Failed() && s.CurrentStep == StepComplete
}
