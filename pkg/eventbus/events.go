package eventbus

import (
	"github.com/google/uuid"

	"github.com/cogreason/reasoner/pkg/assertion"
	"github.com/cogreason/reasoner/pkg/term"
)

// Type identifies an event's shape.
type Type int

const (
	AssertionAdded Type = iota
	AssertionRetracted
	AssertionEvicted
	AssertionStatusChanged
	RuleAdded
	RuleRemoved
	ContradictionDetected
	ExternalInput
	RetractionRequest
	QueryRequestEvent
	QueryResultEvent
	SystemStatusEvent
	// TemporaryAssertion carries a term that was considered but not
	// committed (e.g. a candidate under evaluation); like AssertionAdded,
	// it participates in pattern-subscription matching.
	TemporaryAssertion
)

func (t Type) String() string {
	switch t {
	case AssertionAdded:
		return "AssertionAdded"
	case AssertionRetracted:
		return "AssertionRetracted"
	case AssertionEvicted:
		return "AssertionEvicted"
	case AssertionStatusChanged:
		return "AssertionStatusChanged"
	case RuleAdded:
		return "RuleAdded"
	case RuleRemoved:
		return "RuleRemoved"
	case ContradictionDetected:
		return "ContradictionDetected"
	case ExternalInput:
		return "ExternalInput"
	case RetractionRequest:
		return "RetractionRequest"
	case QueryRequestEvent:
		return "QueryRequest"
	case QueryResultEvent:
		return "QueryResult"
	case SystemStatusEvent:
		return "SystemStatus"
	case TemporaryAssertion:
		return "TemporaryAssertion"
	default:
		return "Unknown"
	}
}

// Event is the envelope dispatched by the Bus.
type Event struct {
	Type    Type
	Payload any
}

// AssertionAddedPayload backs AssertionAdded/AssertionRetracted/AssertionEvicted.
type AssertionAddedPayload struct {
	Assertion *assertion.Assertion
	KBID      string
}

// AssertionStatusChangedPayload backs AssertionStatusChanged.
type AssertionStatusChangedPayload struct {
	ID     string
	Active bool
	KBID   string
}

// RuleEventPayload backs RuleAdded/RuleRemoved.
type RuleEventPayload struct {
	Rule *assertion.Rule
}

// ContradictionPayload backs ContradictionDetected.
type ContradictionPayload struct {
	IDs  [2]string
	KBID string
}

// ExternalInputPayload backs ExternalInput.
type ExternalInputPayload struct {
	Term         *term.Term
	SourceID     string
	TargetNoteID string // "" means global
}

// RetractionType enumerates how a RetractionRequest targets assertions.
type RetractionType int

const (
	ByID RetractionType = iota
	ByNote
	ByRuleForm
)

// RetractionRequestPayload backs RetractionRequest.
type RetractionRequestPayload struct {
	Target       string
	Type         RetractionType
	SourceID     string
	TargetNoteID string
}

// QueryType enumerates the three supported query shapes.
type QueryType int

const (
	AskBindings QueryType = iota
	AskTrueFalse
	AchieveGoal
)

// QueryRequestPayload backs QueryRequestEvent.
type QueryRequestPayload struct {
	ID         string
	Type       QueryType
	Pattern    *term.Term
	TargetKBID string // "" means global
	Parameters map[string]any
}

// NewQueryRequest fills in ID via uuid.NewString when id is empty, grounded
// on the rest of the pack's use of google/uuid for event envelope ids.
func NewQueryRequest(id string, qtype QueryType, pattern *term.Term, targetKBID string, params map[string]any) QueryRequestPayload {
	if id == "" {
		id = uuid.NewString()
	}
	return QueryRequestPayload{ID: id, Type: qtype, Pattern: pattern, TargetKBID: targetKBID, Parameters: params}
}

// AnswerStatus enumerates a query answer's outcome.
type AnswerStatus int

const (
	Success AnswerStatus = iota
	Failure
	Timeout
	ErrorStatus
)

// Answer is the result of a query.
type Answer struct {
	QueryID     string
	Status      AnswerStatus
	Bindings    []map[string]*term.Term
	Explanation string
	Error       string
}

// QueryResultPayload backs QueryResultEvent.
type QueryResultPayload struct {
	Answer Answer
}

// SystemStatusPayload backs SystemStatusEvent.
type SystemStatusPayload struct {
	Status          string
	KBCount         int
	KBCapacity      int
	TaskQueueSize   int
	CommitQueueSize int
	RuleCount       int
}
