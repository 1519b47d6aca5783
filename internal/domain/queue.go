package domain

type LeadStatus string

const (
	LeadStatusPending    LeadStatus = "pending"
	LeadStatusInProgress LeadStatus = "in-progress"
	LeadStatusRemoved    LeadStatus = "removed"
)

// QueueEntry is a pending lead awaiting callback. Entries are created by
// backend ingestion and read-only here except for removal after disposition.
type QueueEntry struct {
	PhoneNumber string     `json:"caller_number"`
	UserID      int64      `json:"user_id"`
	Status      LeadStatus `json:"status,omitempty"`
}

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// PriorityForRank derives the display priority from queue position:
// the first 3 entries rank High, the next 4 Medium, the remainder Low.
func PriorityForRank(rank int) Priority {
	switch {
	case rank < 3:
		return PriorityHigh
	case rank < 7:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// AgentInfo identifies a selectable call-center agent.
type AgentInfo struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
}
