package procurement

import "time"

// MilestoneStatus is derived on every read and never stored.
type MilestoneStatus string

const (
	StatusCompleted  MilestoneStatus = "completed"
	StatusInProgress MilestoneStatus = "in_progress"
	StatusOverdue    MilestoneStatus = "overdue"
)

// Status derives the milestone status at the given instant.
func Status(m Milestone, now time.Time) MilestoneStatus {
	if m.Completed {
		return StatusCompleted
	}
	if m.DueDate > now.Unix() {
		return StatusInProgress
	}
	return StatusOverdue
}

// Status is a convenience wrapper around the package level Status.
func (m Milestone) Status(now time.Time) MilestoneStatus {
	return Status(m, now)
}
