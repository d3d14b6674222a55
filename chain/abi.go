package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"procurement-client/core/procurement"
)

// Contract function names.
const (
	FnCreateProject         = "createProject"
	FnSubmitProject         = "SubmitProject"
	FnGetContractorsProject = "getContractorsProject"
	FnGetSubmittedProject   = "getSubmittedProject"
	FnGetRejectedProject    = "getRejectedProject"
	FnGetAllContractors     = "getAllContractors"
)

const projectTupleJSON = `{"name":"","type":"tuple[]","components":[
	{"name":"projectId","type":"uint256"},
	{"name":"description","type":"string"},
	{"name":"budget","type":"uint256"},
	{"name":"currentBalance","type":"uint256"},
	{"name":"contractor","type":"address"},
	{"name":"startDate","type":"uint256"},
	{"name":"endDate","type":"uint256"},
	{"name":"completed","type":"bool"},
	{"name":"mileStone","type":"tuple[]","components":[
		{"name":"description","type":"string"},
		{"name":"paymentAmount","type":"uint256"},
		{"name":"dueDate","type":"uint256"},
		{"name":"completed","type":"bool"}
	]},
	{"name":"submissionDescription","type":"string"},
	{"name":"imageCid","type":"string"}
]}`

const milestoneTupleJSON = `{"name":"","type":"tuple[]","components":[
	{"name":"description","type":"string"},
	{"name":"paymentAmount","type":"uint256"},
	{"name":"dueDate","type":"uint256"},
	{"name":"completed","type":"bool"}
]}`

// ProcurementABI is the fixed interface of the procurement contract.
const ProcurementABI = `[
{"type":"function","name":"createProject","stateMutability":"nonpayable","inputs":[
	{"name":"description","type":"string"},
	{"name":"budget","type":"uint256"},
	{"name":"contractorAddress","type":"address"},
	{"name":"startDate","type":"uint256"},
	{"name":"endDate","type":"uint256"}
],"outputs":[]},
{"type":"function","name":"SubmitProject","stateMutability":"nonpayable","inputs":[
	{"name":"projectId","type":"uint256"},
	{"name":"description","type":"string"},
	{"name":"imageCid","type":"string"}
],"outputs":[]},
{"type":"function","name":"getContractorsProject","stateMutability":"view","inputs":[
	{"name":"contractor","type":"address"}
],"outputs":[` + projectTupleJSON + `]},
{"type":"function","name":"getSubmittedProject","stateMutability":"view","inputs":[
	{"name":"agency","type":"address"}
],"outputs":[` + projectTupleJSON + `]},
{"type":"function","name":"getRejectedProject","stateMutability":"view","inputs":[
	{"name":"contractor","type":"address"}
],"outputs":[` + milestoneTupleJSON + `]},
{"type":"function","name":"getAllContractors","stateMutability":"view","inputs":[],"outputs":[
	{"name":"","type":"address[]"}
]}
]`

var procurementABI = mustParseABI(ProcurementABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("chain: invalid embedded abi: " + err.Error())
	}
	return parsed
}

// projectTuple and milestoneTuple follow the ABI component order exactly;
// decoding copies fields by position.
type projectTuple struct {
	ProjectId             *big.Int         `abi:"projectId"`
	Description           string           `abi:"description"`
	Budget                *big.Int         `abi:"budget"`
	CurrentBalance        *big.Int         `abi:"currentBalance"`
	Contractor            common.Address   `abi:"contractor"`
	StartDate             *big.Int         `abi:"startDate"`
	EndDate               *big.Int         `abi:"endDate"`
	Completed             bool             `abi:"completed"`
	MileStone             []milestoneTuple `abi:"mileStone"`
	SubmissionDescription string           `abi:"submissionDescription"`
	ImageCid              string           `abi:"imageCid"`
}

type milestoneTuple struct {
	Description   string   `abi:"description"`
	PaymentAmount *big.Int `abi:"paymentAmount"`
	DueDate       *big.Int `abi:"dueDate"`
	Completed     bool     `abi:"completed"`
}

func (t projectTuple) toProject() procurement.Project {
	p := procurement.Project{
		ID:                bigString(t.ProjectId),
		Description:       t.Description,
		Budget:            bigOrZero(t.Budget),
		CurrentBalance:    bigOrZero(t.CurrentBalance),
		ContractorAddress: t.Contractor.Hex(),
		StartDate:         bigInt64(t.StartDate),
		EndDate:           bigInt64(t.EndDate),
		Completed:         t.Completed,
		Milestones:        make([]procurement.Milestone, 0, len(t.MileStone)),
	}
	for _, m := range t.MileStone {
		p.Milestones = append(p.Milestones, m.toMilestone())
	}
	// The contract returns an empty string or the " " placeholder until a
	// submission lands; keep whatever it returned so callers see the raw state.
	if t.ImageCid != "" || t.SubmissionDescription != "" {
		p.Submission = &procurement.Submission{
			Description: t.SubmissionDescription,
			EvidenceCID: t.ImageCid,
		}
	}
	return p
}

func (t milestoneTuple) toMilestone() procurement.Milestone {
	return procurement.Milestone{
		Description:   t.Description,
		PaymentAmount: bigOrZero(t.PaymentAmount),
		DueDate:       bigInt64(t.DueDate),
		Completed:     t.Completed,
	}
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func bigInt64(v *big.Int) int64 {
	if v == nil || !v.IsInt64() {
		return 0
	}
	return v.Int64()
}
