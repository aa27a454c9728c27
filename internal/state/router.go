package state

import (
	"InsMarket/internal/event"
	"fmt"
)

type TargetKind uint8

const (
	TargetMarket TargetKind = iota + 1
	TargetBroker
	TargetLossGenerator
	TargetInsurer
	TargetInsured
	TargetPolicy
)

var targetKindNames = map[TargetKind]string{
	TargetMarket:        "market",
	TargetBroker:        "broker",
	TargetLossGenerator: "loss_generator",
	TargetInsurer:       "insurer",
	TargetInsured:       "insured",
	TargetPolicy:        "policy",
}

func (k TargetKind) String() string {
	if s, ok := targetKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("TargetKind(%d)", k)
}

// Target names one aggregate instance. ID is zero for the singletons.
type Target struct {
	Kind TargetKind
	ID   uint64
}

func (t Target) String() string {
	switch t.Kind {
	case TargetMarket, TargetBroker, TargetLossGenerator:
		return t.Kind.String()
	}
	return fmt.Sprintf("%s/%d", t.Kind, t.ID)
}

var (
	marketTarget = Target{Kind: TargetMarket}
	brokerTarget = Target{Kind: TargetBroker}
	lossTarget   = Target{Kind: TargetLossGenerator}
)

func InsurerTarget(id event.InsurerID) Target { return Target{Kind: TargetInsurer, ID: uint64(id)} }
func InsuredTarget(id event.InsuredID) Target { return Target{Kind: TargetInsured, ID: uint64(id)} }
func PolicyTarget(id event.PolicyID) Target   { return Target{Kind: TargetPolicy, ID: uint64(id)} }

// Route returns the consumers of ev in the fixed role order of its variant.
// The same table drives live dispatch and replay. Targets are resolved one
// at a time, so a target may be created by the Apply of an earlier one.
func (w *World) Route(ev event.Event) []Target {
	switch e := ev.(type) {
	case *event.SimulationStart:
		out := []Target{marketTarget}
		for _, id := range w.insuredIDs {
			out = append(out, InsuredTarget(id))
		}
		return out

	case *event.YearStart:
		out := []Target{marketTarget, lossTarget}
		for _, id := range w.insurerIDs {
			out = append(out, InsurerTarget(id))
		}
		return out

	case *event.YearEnd:
		return []Target{marketTarget}

	case *event.CoverageRequested:
		return []Target{brokerTarget}

	case *event.LeadQuoteRequested:
		return []Target{brokerTarget, InsurerTarget(e.InsurerID)}

	case *event.LeadQuoteIssued:
		return []Target{brokerTarget, InsurerTarget(e.InsurerID)}

	case *event.LeadQuoteDeclined:
		return []Target{brokerTarget, InsurerTarget(e.InsurerID)}

	case *event.FollowerQuoteRequested:
		return []Target{InsurerTarget(e.InsurerID)}

	case *event.FollowerQuoteIssued:
		return []Target{brokerTarget, InsurerTarget(e.InsurerID)}

	case *event.FollowerQuoteDeclined:
		return []Target{InsurerTarget(e.InsurerID)}

	case *event.SubmissionDropped:
		return []Target{brokerTarget, InsuredTarget(e.InsuredID)}

	case *event.QuotePresented:
		return []Target{InsuredTarget(e.InsuredID)}

	case *event.QuoteAccepted:
		return []Target{brokerTarget, InsuredTarget(e.InsuredID)}

	case *event.QuoteRejected:
		return []Target{brokerTarget, InsuredTarget(e.InsuredID)}

	case *event.PolicyBound:
		out := []Target{marketTarget, PolicyTarget(e.PolicyID)}
		for _, entry := range e.Panel {
			out = append(out, InsurerTarget(entry.InsurerID))
		}
		return append(out, InsuredTarget(e.InsuredID), brokerTarget)

	case *event.PolicyExpired:
		out := []Target{PolicyTarget(e.PolicyID), marketTarget}
		if p, ok := w.market.policies[e.PolicyID]; ok {
			for _, entry := range p.panel {
				out = append(out, InsurerTarget(entry.InsurerID))
			}
		}
		return append(out, InsuredTarget(e.InsuredID))

	case *event.LossEvent:
		out := []Target{lossTarget}
		for _, id := range w.market.Exposed(e.Territory, e.Peril) {
			out = append(out, PolicyTarget(id))
		}
		return out

	case *event.AttritionalOccurrence:
		return []Target{PolicyTarget(e.PolicyID)}

	case *event.InsuredLoss:
		return []Target{PolicyTarget(e.PolicyID), InsuredTarget(e.InsuredID), marketTarget}

	case *event.ClaimSettled:
		return []Target{InsurerTarget(e.InsurerID), marketTarget}

	case *event.InsurerInsolvent:
		return []Target{marketTarget}
	}
	return nil
}

// Resolve returns the live aggregate a target names. Unknown IDs resolve to
// nothing rather than a typed nil.
func (w *World) Resolve(t Target) (Handler, bool) {
	switch t.Kind {
	case TargetMarket:
		return w.market, true
	case TargetBroker:
		return w.broker, true
	case TargetLossGenerator:
		return w.losses, true
	case TargetInsurer:
		if i, ok := w.insurers[event.InsurerID(t.ID)]; ok {
			return i, true
		}
	case TargetInsured:
		if s, ok := w.insureds[event.InsuredID(t.ID)]; ok {
			return s, true
		}
	case TargetPolicy:
		if p, ok := w.market.policies[event.PolicyID(t.ID)]; ok {
			return p, true
		}
	}
	return nil, false
}

// Names reports whether ev is routed to target. Projections use it to cut
// one aggregate's owned slice out of a log.
func (w *World) Names(ev event.Event, target Target) bool {
	for _, t := range w.Route(ev) {
		if t == target {
			return true
		}
	}
	return false
}
