package event

// PolicyBound makes a policy loss-eligible. It is the only event that inserts
// a policy into the market's territory/peril index.
type PolicyBound struct {
	PolicyID     PolicyID     `json:"policy_id"`
	SubmissionID SubmissionID `json:"submission_id"`
	InsuredID    InsuredID    `json:"insured_id"`
	InsurerID    InsurerID    `json:"insurer_id"`
	Premium      int64        `json:"premium"`
	SumInsured   int64        `json:"sum_insured"`
	Attachment   int64        `json:"attachment"`
	Limit        int64        `json:"limit"`
	Territory    Territory    `json:"territory"`
	Perils       []Peril      `json:"perils"`
	Panel        []PanelEntry `json:"panel"`
}

func (e *PolicyBound) EventType() EventType {
	return EventTypePolicyBound
}

// Terms returns the bound risk.
func (e *PolicyBound) Terms() Risk {
	return Risk{
		SumInsured: e.SumInsured,
		Attachment: e.Attachment,
		Limit:      e.Limit,
		Territory:  e.Territory,
		Perils:     e.Perils,
	}
}

type PolicyExpired struct {
	PolicyID  PolicyID  `json:"policy_id"`
	InsuredID InsuredID `json:"insured_id"`
}

func (e *PolicyExpired) EventType() EventType {
	return EventTypePolicyExpired
}
