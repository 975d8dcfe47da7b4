package model

import (
	"crypto/ed25519"
	"encoding/base64"
	"time"
)

// Receipt is a worker's signed attestation that it produced the output
// identified by OutputHash for the referenced job.
type Receipt struct {
	JobID        string
	WorkerPubkey string // base64 ed25519 public key
	OutputHash   string
	Signature    []byte // ed25519 over SigningBytes
	CompletedAt  time.Time
	PaymentRef   string
}

// SigningBytes is the canonical message a worker signs: the job id and
// output hash joined with a single separator byte. Both sides must
// produce identical bytes for verification to succeed.
func SigningBytes(jobID, outputHash string) []byte {
	b := make([]byte, 0, len(jobID)+1+len(outputHash))
	b = append(b, jobID...)
	b = append(b, '|')
	b = append(b, outputHash...)
	return b
}

// VerifySignature checks the receipt signature against the given
// base64-encoded ed25519 public key.
func (r *Receipt) VerifySignature(pubkeyB64 string) bool {
	raw, err := base64.StdEncoding.DecodeString(pubkeyB64)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(raw), SigningBytes(r.JobID, r.OutputHash), r.Signature)
}
