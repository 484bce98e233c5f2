package domain

import "time"

// Relevance is the classifier's primary axis. NOISE stops processing.
type Relevance string

const (
	RelevanceSales       Relevance = "SALES"
	RelevanceBusiness    Relevance = "BUSINESS"
	RelevancePersonal    Relevance = "PERSONAL"
	RelevanceOpportunity Relevance = "OPPORTUNITY"
	RelevanceNoise       Relevance = "NOISE"
)

// Importance ranks how urgently the owner should see the message.
type Importance string

const (
	ImportanceCritical Importance = "CRITICAL"
	ImportanceHigh     Importance = "HIGH"
	ImportanceRegular  Importance = "REGULAR"
	ImportanceLow      Importance = "LOW"
)

// MessageType drives the action scheduler.
type MessageType string

const (
	TypeEvent MessageType = "EVENT"
	TypeTodo  MessageType = "TODO"
	TypeInfo  MessageType = "INFO"
)

// TodoUrgency is the inferred due window of a TODO verdict.
type TodoUrgency string

const (
	UrgencyToday    TodoUrgency = "TODAY"
	UrgencyTomorrow TodoUrgency = "TOMORROW"
	UrgencySoon     TodoUrgency = "SOON"
)

// EventDetails are extracted scheduling hints for EVENT verdicts.
type EventDetails struct {
	DurationMinutes int        `json:"duration_minutes"`
	RequestedTime   *time.Time `json:"requested_time,omitempty"`
}

// TodoDetails are extracted task hints for TODO verdicts.
type TodoDetails struct {
	Description string      `json:"description"`
	Urgency     TodoUrgency `json:"urgency"`
}

// TriageVerdict is the classifier's structured judgment of a message.
// It is ephemeral: never persisted directly, but it drives message tags,
// thread priority, and scheduled actions.
type TriageVerdict struct {
	Relevance  Relevance   `json:"relevance"`
	Importance Importance  `json:"importance"`
	Type       MessageType `json:"type"`

	Summary string `json:"summary"`

	DealType  DealType  `json:"deal_type,omitempty"`
	DealState DealState `json:"deal_state,omitempty"`

	EventDetails *EventDetails `json:"event_details,omitempty"`
	TodoDetails  *TodoDetails  `json:"todo_details,omitempty"`
}

// DefaultVerdict is the safe fallback substituted when classifier output
// is malformed: treat as relevant, regular importance, plain info.
func DefaultVerdict() TriageVerdict {
	return TriageVerdict{
		Relevance:  RelevanceBusiness,
		Importance: ImportanceRegular,
		Type:       TypeInfo,
		DealType:   DealTypeBuyer,
		DealState:  DealStateIdle,
	}
}

// PriorityFromImportance maps an importance class to the thread priority
// score used for morning-brief ranking.
func PriorityFromImportance(imp Importance) int {
	switch imp {
	case ImportanceCritical:
		return 10
	case ImportanceHigh:
		return 8
	case ImportanceRegular:
		return 5
	default:
		return 1
	}
}
