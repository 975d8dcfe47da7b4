package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Admission
	ErrValidation = errors.New("invalid job payload")

	// Matching
	ErrNoWorkerAvailable = errors.New("no worker available")
	ErrAssignmentTimeout = errors.New("worker did not acknowledge assignment")
	ErrWorkerBusy        = errors.New("worker already claimed")

	// Lifecycle
	ErrInvalidTransition = errors.New("invalid job state transition")
	ErrJobNotCancelable  = errors.New("job can no longer be canceled")

	// Receipts
	ErrReceiptStale    = errors.New("stale receipt")
	ErrReceiptIdentity = errors.New("identity mismatch")
	ErrReceiptBadSig   = errors.New("bad signature")

	// Settlement
	ErrSettlementVenueUnavailable = errors.New("swap venue unavailable")
	ErrSettlementLocked           = errors.New("settlement in progress")

	// Pairing
	ErrPairingNotOpen = errors.New("pairing code expired or already claimed")
)
