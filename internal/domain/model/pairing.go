package model

import "time"

// TrustPairing links a requester to a specific worker for PRIVATE
// jobs via a time-limited, single-claim pairing code. While the
// pairing is unexpired and unclaimed it makes the worker eligible for
// that requester's PRIVATE jobs; routing a job through it claims it.
type TrustPairing struct {
	ID           string
	RequesterID  string
	WorkerPubkey string
	PairingCode  string
	Claimed      bool
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// Open reports whether the pairing still grants eligibility at now.
func (p *TrustPairing) Open(now time.Time) bool {
	return !p.Claimed && now.Before(p.ExpiresAt)
}
