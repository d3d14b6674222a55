package procurement

import "time"

// Stats is the dashboard aggregate for one snapshot of projects.
type Stats struct {
	Active                int `json:"active"`
	Completed             int `json:"completed"`
	PendingSubmission     int `json:"pending_submission"`
	OverdueMilestoneCount int `json:"overdue_milestone_count"`
	RejectedMilestones    int `json:"rejected_milestones"`
}

// ComputeStats recomputes the aggregate from scratch. It is a pure function of
// its inputs; callers re-run it whenever the snapshot changes.
func ComputeStats(projects []Project, rejected []Milestone, now time.Time) Stats {
	var s Stats
	for _, p := range projects {
		if p.Completed {
			s.Completed++
		} else {
			s.Active++
		}
		if p.PendingSubmission() {
			s.PendingSubmission++
		}
		for _, m := range p.Milestones {
			if Status(m, now) == StatusOverdue {
				s.OverdueMilestoneCount++
			}
		}
	}
	s.RejectedMilestones = len(rejected)
	return s
}
