package entity

import "time"

// InstanceHistory is one entry of an instance's audit trail
type InstanceHistory struct {
	ID         int64     `json:"id"`
	InstanceID string    `json:"instance_id"`
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	FromStep   int       `json:"from_step"`
	ToStep     int       `json:"to_step"`
	ActorID    string    `json:"actor_id,omitempty"`
	ApprovalID string    `json:"approval_id,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
