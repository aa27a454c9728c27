package event

// CoverageRequested is an insured asking the broker to place its risk.
type CoverageRequested struct {
	InsuredID InsuredID `json:"insured_id"`
	Risk      Risk      `json:"risk"`
}

func (e *CoverageRequested) EventType() EventType {
	return EventTypeCoverageRequested
}

// LeadQuoteRequested solicits one insurer. Attempt is 1-based.
type LeadQuoteRequested struct {
	SubmissionID SubmissionID `json:"submission_id"`
	InsuredID    InsuredID    `json:"insured_id"`
	InsurerID    InsurerID    `json:"insurer_id"`
	Attempt      int          `json:"attempt"`
	Risk         Risk         `json:"risk"`
}

func (e *LeadQuoteRequested) EventType() EventType {
	return EventTypeLeadQuoteRequested
}

type LeadQuoteIssued struct {
	SubmissionID SubmissionID `json:"submission_id"`
	InsuredID    InsuredID    `json:"insured_id"`
	InsurerID    InsurerID    `json:"insurer_id"`
	Attempt      int          `json:"attempt"`
	Premium      int64        `json:"premium"`
}

func (e *LeadQuoteIssued) EventType() EventType {
	return EventTypeLeadQuoteIssued
}

type LeadQuoteDeclined struct {
	SubmissionID SubmissionID  `json:"submission_id"`
	InsuredID    InsuredID     `json:"insured_id"`
	InsurerID    InsurerID     `json:"insurer_id"`
	Attempt      int           `json:"attempt"`
	Reason       DeclineReason `json:"reason"`
}

func (e *LeadQuoteDeclined) EventType() EventType {
	return EventTypeLeadQuoteDeclined
}

// FollowerQuoteRequested asks an insurer to follow an issued lead quote for
// ShareBps of the risk at the lead's price.
type FollowerQuoteRequested struct {
	SubmissionID SubmissionID `json:"submission_id"`
	InsuredID    InsuredID    `json:"insured_id"`
	InsurerID    InsurerID    `json:"insurer_id"`
	ShareBps     int64        `json:"share_bps"`
	LeadPremium  int64        `json:"lead_premium"`
	Risk         Risk         `json:"risk"`
}

func (e *FollowerQuoteRequested) EventType() EventType {
	return EventTypeFollowerQuoteRequested
}

// FollowerQuoteIssued carries the follower's premium for its share.
type FollowerQuoteIssued struct {
	SubmissionID SubmissionID `json:"submission_id"`
	InsuredID    InsuredID    `json:"insured_id"`
	InsurerID    InsurerID    `json:"insurer_id"`
	ShareBps     int64        `json:"share_bps"`
	Premium      int64        `json:"premium"`
}

func (e *FollowerQuoteIssued) EventType() EventType {
	return EventTypeFollowerQuoteIssued
}

type FollowerQuoteDeclined struct {
	SubmissionID SubmissionID  `json:"submission_id"`
	InsuredID    InsuredID     `json:"insured_id"`
	InsurerID    InsurerID     `json:"insurer_id"`
	Reason       DeclineReason `json:"reason"`
}

func (e *FollowerQuoteDeclined) EventType() EventType {
	return EventTypeFollowerQuoteDeclined
}

// SubmissionDropped is the terminal outcome of a submission that exhausted
// its solicitation attempts without an issued quote.
type SubmissionDropped struct {
	SubmissionID SubmissionID `json:"submission_id"`
	InsuredID    InsuredID    `json:"insured_id"`
	Attempts     int          `json:"attempts"`
}

func (e *SubmissionDropped) EventType() EventType {
	return EventTypeSubmissionDropped
}

type QuotePresented struct {
	SubmissionID SubmissionID `json:"submission_id"`
	InsuredID    InsuredID    `json:"insured_id"`
	InsurerID    InsurerID    `json:"insurer_id"`
	Premium      int64        `json:"premium"`
}

func (e *QuotePresented) EventType() EventType {
	return EventTypeQuotePresented
}

type QuoteAccepted struct {
	SubmissionID SubmissionID `json:"submission_id"`
	InsuredID    InsuredID    `json:"insured_id"`
	InsurerID    InsurerID    `json:"insurer_id"`
	Premium      int64        `json:"premium"`
}

func (e *QuoteAccepted) EventType() EventType {
	return EventTypeQuoteAccepted
}

type QuoteRejected struct {
	SubmissionID SubmissionID `json:"submission_id"`
	InsuredID    InsuredID    `json:"insured_id"`
	InsurerID    InsurerID    `json:"insurer_id"`
	Premium      int64        `json:"premium"`
}

func (e *QuoteRejected) EventType() EventType {
	return EventTypeQuoteRejected
}
