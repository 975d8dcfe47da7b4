package model

import "time"

type DeviceClass string

const (
	DeviceDesktop DeviceClass = "desktop"
	DeviceMobile  DeviceClass = "mobile"
)

type StakeTier string

const (
	TierOpen     StakeTier = "OPEN"
	TierVerified StakeTier = "VERIFIED"
	TierSentinel StakeTier = "SENTINEL"
)

// Minimum staked BOLT per tier.
var StakeRequirements = map[StakeTier]int64{
	TierOpen:     0,
	TierVerified: 100,
	TierSentinel: 1000,
}

// TierForStake maps a staked amount to the highest tier it satisfies.
func TierForStake(amount int64) StakeTier {
	switch {
	case amount >= StakeRequirements[TierSentinel]:
		return TierSentinel
	case amount >= StakeRequirements[TierVerified]:
		return TierVerified
	default:
		return TierOpen
	}
}

type tierWeight struct {
	Bonus         float64
	RepMultiplier float64
}

var stakePriority = map[StakeTier]tierWeight{
	TierOpen:     {Bonus: 0, RepMultiplier: 1.0},
	TierVerified: {Bonus: 5, RepMultiplier: 1.5},
	TierSentinel: {Bonus: 10, RepMultiplier: 2.0},
}

// Worker is a registered compute device. The public key is the
// identity and never changes after registration.
type Worker struct {
	Pubkey            string // base64 ed25519 public key
	DeviceClass       DeviceClass
	Tier              StakeTier
	SettlementAddress string

	// Reputation is externally sourced and cached; nil means never
	// fetched (or the ledger has no history for this worker).
	Reputation *float64

	LastSeen    time.Time
	BusyJobID   string
	Revocations int
	Unhealthy   bool
	CreatedAt   time.Time
}

// Priority is the matching rank: tierBonus + reputation weighted by
// the tier multiplier. A worker without reputation ranks on bonus
// alone.
func (w *Worker) Priority() float64 {
	tw, ok := stakePriority[w.Tier]
	if !ok {
		tw = stakePriority[TierOpen]
	}
	rep := 0.0
	if w.Reputation != nil {
		rep = *w.Reputation
	}
	return tw.Bonus + rep*tw.RepMultiplier
}

// Live reports whether the worker heartbeated within the liveness
// window ending at now.
func (w *Worker) Live(now time.Time, timeout time.Duration) bool {
	return !w.LastSeen.IsZero() && now.Sub(w.LastSeen) <= timeout
}
