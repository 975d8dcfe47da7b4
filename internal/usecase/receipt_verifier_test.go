//go:build !integration

package usecase_test

import (
	"errors"
	"testing"

	"github.com/pranit-garg/Dispatch/internal/domain"
	"github.com/pranit-garg/Dispatch/internal/domain/model"
	"github.com/pranit-garg/Dispatch/internal/usecase"
)

func TestReceiptVerifier_Verify(t *testing.T) {
	v := usecase.NewReceiptVerifier()
	kp := newTestKeypair()

	runningJob := func() *model.Job {
		return &model.Job{ID: "job-1", Status: model.JobStatusRunning, WorkerPubkey: kp.PubkeyB64}
	}

	t.Run("authentic receipt passes", func(t *testing.T) {
		rc := kp.SignReceipt("job-1", "hash")
		if err := v.Verify(runningJob(), rc); err != nil {
			t.Fatalf("Verify() = %v, want nil", err)
		}
	})

	t.Run("job not running is stale", func(t *testing.T) {
		rc := kp.SignReceipt("job-1", "hash")
		for _, st := range []model.JobStatus{model.JobStatusPending, model.JobStatusAssigned, model.JobStatusCompleted, model.JobStatusFailed} {
			job := runningJob()
			job.Status = st
			if err := v.Verify(job, rc); !errors.Is(err, domain.ErrReceiptStale) {
				t.Errorf("status %s: Verify() = %v, want ErrReceiptStale", st, err)
			}
		}
	})

	t.Run("wrong worker identity", func(t *testing.T) {
		other := newTestKeypair()
		rc := other.SignReceipt("job-1", "hash")
		if err := v.Verify(runningJob(), rc); !errors.Is(err, domain.ErrReceiptIdentity) {
			t.Fatalf("Verify() = %v, want ErrReceiptIdentity", err)
		}
	})

	t.Run("forged signature", func(t *testing.T) {
		rc := kp.SignReceipt("job-1", "hash")
		rc.OutputHash = "tampered"
		if err := v.Verify(runningJob(), rc); !errors.Is(err, domain.ErrReceiptBadSig) {
			t.Fatalf("Verify() = %v, want ErrReceiptBadSig", err)
		}
	})
}
