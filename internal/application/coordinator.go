package application

import (
	"context"
	"errors"

	"github.com/pranit-garg/Dispatch/internal/domain/ports/adapter"
	"github.com/pranit-garg/Dispatch/internal/infra/logging"
	"github.com/pranit-garg/Dispatch/internal/registry"
	"github.com/pranit-garg/Dispatch/internal/usecase"

	"github.com/rs/zerolog"
)

// Coordinator binds the worker channel to the registry and the job
// usecase: it drains inbound frames and dispatches them by kind.
// Outbound assignments flow the other way, straight from the job
// usecase to the channel.
type Coordinator struct {
	channel adapter.WorkerChannel
	reg     *registry.Registry
	jobs    usecase.JobUseCase
	log     *zerolog.Logger
}

func NewCoordinator(channel adapter.WorkerChannel, reg *registry.Registry, jobs usecase.JobUseCase, logger *zerolog.Logger) *Coordinator {
	return &Coordinator{channel: channel, reg: reg, jobs: jobs, log: logger}
}

// Run pumps the channel until ctx is canceled. Frame handling errors
// are logged and never stop the pump; a broken worker must not take
// the coordinator down.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		msg, err := c.channel.Recv(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		c.dispatch(ctx, msg)
	}
}

func (c *Coordinator) dispatch(ctx context.Context, msg adapter.WorkerMessage) {
	log := c.log.With().
		Str("kind", string(msg.Kind)).
		Str("worker", logging.Redact(msg.Pubkey, false)).
		Logger()

	switch msg.Kind {
	case adapter.MsgRegister:
		w := c.reg.Register(msg.Pubkey, msg.DeviceClass, msg.StakedAmount, msg.SettlementAddress)
		log.Info().Str("tier", string(w.Tier)).Str("class", string(w.DeviceClass)).Msg("worker registered")

	case adapter.MsgHeartbeat:
		c.reg.Heartbeat(msg.Pubkey)

	case adapter.MsgStartAck:
		if err := c.jobs.StartAck(ctx, msg.JobID, msg.Pubkey); err != nil {
			log.Warn().Err(err).Str("job_id", msg.JobID).Msg("start ack rejected")
		}

	case adapter.MsgReceipt:
		if msg.Receipt == nil {
			log.Warn().Msg("receipt frame without receipt")
			return
		}
		if err := c.jobs.HandleReceipt(ctx, msg.Receipt, msg.Result); err != nil {
			log.Warn().Err(err).Str("job_id", msg.Receipt.JobID).Msg("receipt rejected")
		}

	case adapter.MsgFail:
		if err := c.jobs.ReportFailure(ctx, msg.JobID, msg.Pubkey, msg.Reason); err != nil {
			log.Warn().Err(err).Str("job_id", msg.JobID).Msg("failure report rejected")
		}

	default:
		log.Warn().Msg("unknown worker frame")
	}
}
