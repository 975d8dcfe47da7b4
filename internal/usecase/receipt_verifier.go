package usecase

import (
	"github.com/pranit-garg/Dispatch/internal/domain"
	"github.com/pranit-garg/Dispatch/internal/domain/model"
)

// ReceiptVerifier validates a signed completion receipt against the
// job it claims to complete. Pure function of its inputs; the checks
// run cheapest-first so forged traffic is rejected before any
// signature math.
type ReceiptVerifier struct{}

func NewReceiptVerifier() ReceiptVerifier { return ReceiptVerifier{} }

// Verify returns nil when the receipt is authentic, or one of
// domain.ErrReceiptStale, domain.ErrReceiptIdentity,
// domain.ErrReceiptBadSig.
func (ReceiptVerifier) Verify(job *model.Job, rc *model.Receipt) error {
	if job == nil || job.Status != model.JobStatusRunning {
		return domain.ErrReceiptStale
	}
	if rc.WorkerPubkey != job.WorkerPubkey {
		return domain.ErrReceiptIdentity
	}
	if !rc.VerifySignature(job.WorkerPubkey) {
		return domain.ErrReceiptBadSig
	}
	return nil
}
