package procurement

import (
	"math/big"
	"strings"
	"time"
)

// EmptyCIDSentinel is the placeholder the contract stores before a contractor
// has submitted evidence. It must never be read as a real submission.
const EmptyCIDSentinel = " "

// Project mirrors the on-chain project tuple.
type Project struct {
	ID                string      `json:"project_id"`
	Description       string      `json:"description"`
	Budget            *big.Int    `json:"budget"`
	CurrentBalance    *big.Int    `json:"current_balance"`
	ContractorAddress string      `json:"contractor_address"`
	StartDate         int64       `json:"start_date"`
	EndDate           int64       `json:"end_date"`
	Completed         bool        `json:"completed"`
	Milestones        []Milestone `json:"milestones"`
	Submission        *Submission `json:"submission,omitempty"`
}

// Milestone is a schedulable sub-deliverable of a project.
type Milestone struct {
	Description   string   `json:"description"`
	PaymentAmount *big.Int `json:"payment_amount"`
	DueDate       int64    `json:"due_date"`
	Completed     bool     `json:"completed"`
}

// Submission holds the contractor's deliverable reference.
type Submission struct {
	Description string `json:"description"`
	EvidenceCID string `json:"evidence_cid"`
}

// Submitted reports whether the submission carries real evidence.
func (s *Submission) Submitted() bool {
	if s == nil {
		return false
	}
	return s.EvidenceCID != "" && s.EvidenceCID != EmptyCIDSentinel
}

// PendingSubmission is true until the contractor has uploaded evidence.
func (p Project) PendingSubmission() bool {
	return !p.Submission.Submitted()
}

// Start returns the project start as a time.
func (p Project) Start() time.Time { return time.Unix(p.StartDate, 0) }

// End returns the project deadline as a time.
func (p Project) End() time.Time { return time.Unix(p.EndDate, 0) }

// Role is the operating mode of the client.
type Role string

const (
	RoleContractor Role = "contractor"
	RoleAgency     Role = "agency"
)

// ParseRole maps a persisted value back to a Role. Unknown values fall back
// to the contractor role.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAgency:
		return RoleAgency
	default:
		return RoleContractor
	}
}

func (r Role) String() string { return string(r) }
