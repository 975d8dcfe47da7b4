package adapter

import (
	"context"
	"encoding/json"

	"github.com/pranit-garg/Dispatch/internal/domain/model"
)

// WorkerMessageKind discriminates inbound messages on the worker
// channel.
type WorkerMessageKind string

const (
	MsgRegister  WorkerMessageKind = "REGISTER"
	MsgHeartbeat WorkerMessageKind = "HEARTBEAT"
	MsgStartAck  WorkerMessageKind = "START_ACK"
	MsgReceipt   WorkerMessageKind = "RECEIPT"
	MsgFail      WorkerMessageKind = "FAIL"
)

// WorkerMessage is one inbound frame from a worker. Fields are
// populated per kind; the channel implementation owns decoding.
type WorkerMessage struct {
	Kind   WorkerMessageKind
	Pubkey string

	// REGISTER
	DeviceClass       model.DeviceClass
	StakedAmount      int64
	SettlementAddress string

	// START_ACK / FAIL
	JobID  string
	Reason string

	// RECEIPT
	Receipt *model.Receipt
	Result  json.RawMessage
}

// Assignment is the outbound frame offering a job to a worker.
type Assignment struct {
	JobID        string             `json:"job_id"`
	JobType      model.JobType      `json:"job_type"`
	Payload      model.JobPayload   `json:"payload"`
	Policy       model.Policy       `json:"policy"`
	PrivacyClass model.PrivacyClass `json:"privacy_class"`
}

// WorkerChannel abstracts the long-lived bidirectional transport to
// the worker fleet. The coordinator never sees sockets, only frames.
type WorkerChannel interface {
	// Recv blocks for the next inbound message or ctx cancellation.
	Recv(ctx context.Context) (WorkerMessage, error)
	// Send delivers an assignment to the identified worker.
	Send(ctx context.Context, workerPubkey string, a Assignment) error
}
