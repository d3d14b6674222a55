package procurement

import "time"

// MilestoneView is a milestone with its status derived at read time.
type MilestoneView struct {
	Milestone
	Status MilestoneStatus `json:"status"`
}

// ProjectView is what the outer surfaces render for a project.
type ProjectView struct {
	Project
	Milestones        []MilestoneView `json:"milestones"`
	PendingSubmission bool            `json:"pending_submission"`
}

// NewProjectView derives every milestone status at now.
func NewProjectView(p Project, now time.Time) ProjectView {
	return ProjectView{
		Project:           p,
		Milestones:        NewMilestoneViews(p.Milestones, now),
		PendingSubmission: p.PendingSubmission(),
	}
}

func NewProjectViews(projects []Project, now time.Time) []ProjectView {
	out := make([]ProjectView, 0, len(projects))
	for _, p := range projects {
		out = append(out, NewProjectView(p, now))
	}
	return out
}

func NewMilestoneViews(ms []Milestone, now time.Time) []MilestoneView {
	out := make([]MilestoneView, 0, len(ms))
	for _, m := range ms {
		out = append(out, MilestoneView{Milestone: m, Status: Status(m, now)})
	}
	return out
}
