package quarantine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"batchflow/internal/batch"
)

// ErrUnknownToken is returned when a resume token is unknown or already used.
var ErrUnknownToken = errors.New("unknown or consumed resume token")

// Message is the quarantine queue payload.
type Message struct {
	ExecutionID  string `json:"executionId"`
	ResumeToken  string `json:"resumeToken"`
	CurrentState string `json:"currentState"`
}

// NewMessage snapshots state into a message.
func NewMessage(executionID, token string, state batch.State) (Message, error) {
	snapshot, err := state.Snapshot()
	if err != nil {
		return Message{}, err
	}
	return Message{ExecutionID: executionID, ResumeToken: token, CurrentState: snapshot}, nil
}

// Encode renders the message as JSON.
func (m Message) Encode() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal quarantine message: %w", err)
	}
	return string(data), nil
}

// DecodeMessage parses a JSON quarantine message.
func DecodeMessage(raw string) (Message, error) {
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return Message{}, fmt.Errorf("parse quarantine message: %w", err)
	}
	return msg, nil
}

// State restores the snapshot carried by the message.
func (m Message) State() (batch.State, error) {
	return batch.ParseSnapshot(m.CurrentState)
}

// Action is the reviewer's decision when resuming a run.
type Action string

const (
	// ActionContinue resumes the pipeline at the stage after the gate.
	ActionContinue Action = "continue"
	// ActionAbort ends the run.
	ActionAbort Action = "abort"
)

// ParseAction validates a resume action. Blank means continue.
func ParseAction(value string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(value))) {
	case "", ActionContinue:
		return ActionContinue, nil
	case ActionAbort:
		return ActionAbort, nil
	default:
		return "", fmt.Errorf("unknown resume action %q (want continue or abort)", value)
	}
}
