package reel

import "time"

// Ledger event actions.
const (
	ActionRecord      = "record"
	ActionFastForward = "fast-forward"
	ActionDiscover    = "discover"
	ActionSetLatest   = "set-latest"
	ActionMigrate     = "migrate"
)

// LedgerEvent describes one registered version or latest-pointer change.
type LedgerEvent struct {
	Dir         string
	ContentType ContentType
	Action      string
	Version     int
	Producer    string
	At          time.Time
}

// JobEvent describes one queue transition.
type JobEvent struct {
	Dir           string
	ContentType   ContentType
	TargetVersion int
	Status        JobStatus
	Error         string
	At            time.Time
}

// Journal keeps an append-only audit trail of ledger and queue activity.
// Failures to journal never fail the operation being journaled.
type Journal interface {
	LedgerEvent(ev LedgerEvent) error
	JobEvent(ev JobEvent) error
}

type NopJournal struct{}

func (NopJournal) LedgerEvent(LedgerEvent) error { return nil }
func (NopJournal) JobEvent(JobEvent) error       { return nil }
