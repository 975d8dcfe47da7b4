package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/pranit-garg/Dispatch/internal/domain"
	"github.com/pranit-garg/Dispatch/internal/domain/model"
	"github.com/pranit-garg/Dispatch/internal/domain/ports/repository"
	"github.com/pranit-garg/Dispatch/internal/usecase"

	"github.com/go-chi/chi/v5"
)

// headerRequester identifies the paying requester; headerPayment
// carries the verified amount stamped by the fronting payment
// middleware. Both are trusted inputs here.
const (
	headerRequester = "X-Requester"
	headerPayment   = "X-Payment-Amount"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// quoteHandler serves GET /api/v1/quote?policy=&job_type=.
func (s *Server) quoteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobType := model.JobType(r.URL.Query().Get("job_type"))
		switch jobType {
		case model.JobTypeLLMInfer, model.JobTypeTask:
		default:
			http.Error(w, "unknown job_type", http.StatusBadRequest)
			return
		}
		policy := model.Policy(r.URL.Query().Get("policy"))
		if policy == "" {
			policy = model.PolicyAuto
		}
		writeJSON(w, http.StatusOK, s.quote.Resolve(policy, jobType))
	}
}

type jobSubmitRequest struct {
	Type         model.JobType      `json:"type"`
	Policy       model.Policy       `json:"policy"`
	PrivacyClass model.PrivacyClass `json:"privacy_class"`
	Payload      model.JobPayload   `json:"payload"`
}

type jobResponse struct {
	ID           string          `json:"id"`
	Type         model.JobType   `json:"type"`
	Policy       model.Policy    `json:"policy"`
	PrivacyClass string          `json:"privacy_class"`
	Status       model.JobStatus `json:"status"`
	Result       json.RawMessage `json:"result,omitempty"`
	FailReason   string          `json:"fail_reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`

	// Populated on completed jobs only.
	PayoutPending *bool              `json:"payout_pending,omitempty"`
	Settlement    *settlementSummary `json:"settlement,omitempty"`
}

type settlementSummary struct {
	Status      model.SettlementStatus `json:"status"`
	SwapTxRef   string                 `json:"swap_tx_ref,omitempty"`
	PayoutTxRef string                 `json:"payout_tx_ref,omitempty"`
	BurnTxRef   string                 `json:"burn_tx_ref,omitempty"`
}

func toJobResponse(job *model.Job) jobResponse {
	resp := jobResponse{
		ID:           job.ID,
		Type:         job.Type,
		Policy:       job.Policy,
		PrivacyClass: string(job.PrivacyClass),
		Status:       job.Status,
		Result:       job.Result,
		FailReason:   job.FailReason,
		CreatedAt:    job.CreatedAt,
	}
	if !job.CompletedAt.IsZero() {
		t := job.CompletedAt
		resp.CompletedAt = &t
	}
	return resp
}

// jobSubmitHandler serves POST /api/v1/jobs. The payment must already
// be verified upstream; an absent or malformed payment header is a 402.
func (s *Server) jobSubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requester := r.Header.Get(headerRequester)
		if requester == "" {
			http.Error(w, "requester header required", http.StatusBadRequest)
			return
		}
		paid, err := s.gate.PaidAmount(ctx, r.Header.Get(headerPayment))
		if err != nil {
			http.Error(w, "payment required", http.StatusPaymentRequired)
			return
		}

		var req jobSubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		job, err := s.jobs.Submit(ctx, usecase.SubmitRequest{
			Type:         req.Type,
			Policy:       req.Policy,
			PrivacyClass: req.PrivacyClass,
			RequesterID:  requester,
			Payload:      req.Payload,
			PaidAmount:   paid,
		})
		if err != nil {
			if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrInvalidArgument) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			s.log.Error().Err(err).Msg("job submit failed")
			http.Error(w, "failed to submit job", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusAccepted, toJobResponse(job))
	}
}

// jobGetHandler serves GET /api/v1/jobs/{id}. Completed jobs carry a
// settlement summary so requesters can see whether the payout has
// landed yet.
func (s *Server) jobGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")

		job, err := s.jobs.Get(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "failed to get job", http.StatusInternalServerError)
			return
		}

		resp := toJobResponse(job)
		if job.Status == model.JobStatusCompleted {
			pending := true
			if rec, err := s.settlements.FindByJobID(ctx, repository.NoTX, id); err == nil {
				pending = !rec.Status.Terminal()
				resp.Settlement = &settlementSummary{
					Status:      rec.Status,
					SwapTxRef:   rec.SwapTxRef,
					PayoutTxRef: rec.PayoutTxRef,
					BurnTxRef:   rec.BurnTxRef,
				}
			}
			resp.PayoutPending = &pending
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// jobCancelHandler serves POST /api/v1/jobs/{id}/cancel.
func (s *Server) jobCancelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := s.jobs.Cancel(r.Context(), id); err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				http.NotFound(w, r)
			case errors.Is(err, domain.ErrJobNotCancelable):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				http.Error(w, "failed to cancel job", http.StatusInternalServerError)
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type pairingCreateRequest struct {
	WorkerPubkey string `json:"worker_pubkey"`
	TTLSeconds   int    `json:"ttl_seconds,omitempty"`
}

type pairingResponse struct {
	Code      string    `json:"code"`
	Claimed   bool      `json:"claimed"`
	ExpiresAt time.Time `json:"expires_at"`
}

// pairingCreateHandler serves POST /api/v1/pairings.
func (s *Server) pairingCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester := r.Header.Get(headerRequester)
		if requester == "" {
			http.Error(w, "requester header required", http.StatusBadRequest)
			return
		}
		var req pairingCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		pairing, err := s.pairings.Create(r.Context(), requester, req.WorkerPubkey, time.Duration(req.TTLSeconds)*time.Second)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidArgument) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "failed to create pairing", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, pairingResponse{
			Code:      pairing.PairingCode,
			Claimed:   pairing.Claimed,
			ExpiresAt: pairing.ExpiresAt,
		})
	}
}

type pairingClaimRequest struct {
	Code         string `json:"code"`
	WorkerPubkey string `json:"worker_pubkey"`
}

// pairingClaimHandler serves POST /api/v1/pairings/claim: the worker
// redeems its single-use pairing code.
func (s *Server) pairingClaimHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pairingClaimRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		pairing, err := s.pairings.Claim(r.Context(), req.Code, req.WorkerPubkey)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				http.NotFound(w, r)
			case errors.Is(err, domain.ErrPairingNotOpen):
				http.Error(w, err.Error(), http.StatusConflict)
			case errors.Is(err, domain.ErrInvalidArgument):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "failed to claim pairing", http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, http.StatusOK, pairingResponse{
			Code:      pairing.PairingCode,
			Claimed:   pairing.Claimed,
			ExpiresAt: pairing.ExpiresAt,
		})
	}
}

// pairingGetHandler serves GET /api/v1/pairings/{code}.
func (s *Server) pairingGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pairing, err := s.pairings.GetByCode(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "failed to get pairing", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, pairingResponse{
			Code:      pairing.PairingCode,
			Claimed:   pairing.Claimed,
			ExpiresAt: pairing.ExpiresAt,
		})
	}
}

type loginRequest struct {
	Key string `json:"key"`
}

// loginHandler serves POST /api/v1/admin/session: exchange the shared
// operator key for a session token.
func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey == "" {
			s.log.Error().Msg("operator key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key != s.adminKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		token, err := s.auth.Mint(w)
		if err != nil {
			http.Error(w, "failed to mint session", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

// settlementGetHandler serves GET /api/v1/admin/settlements/{jobID}.
func (s *Server) settlementGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := s.settlements.FindByJobID(r.Context(), repository.NoTX, chi.URLParam(r, "jobID"))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "failed to get settlement", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			JobID         string                 `json:"job_id"`
			Status        model.SettlementStatus `json:"status"`
			USDCAmount    string                 `json:"usdc_amount"`
			SwappedAmount string                 `json:"swapped_amount"`
			Fee           string                 `json:"fee"`
			Payout        string                 `json:"payout"`
			SwapTxRef     string                 `json:"swap_tx_ref,omitempty"`
			PayoutTxRef   string                 `json:"payout_tx_ref,omitempty"`
			BurnTxRef     string                 `json:"burn_tx_ref,omitempty"`
			Attempts      int                    `json:"attempts"`
		}{
			JobID:         rec.JobID,
			Status:        rec.Status,
			USDCAmount:    rec.USDCAmount.String(),
			SwappedAmount: rec.SwappedAmount.String(),
			Fee:           rec.Fee.String(),
			Payout:        rec.Payout.String(),
			SwapTxRef:     rec.SwapTxRef,
			PayoutTxRef:   rec.PayoutTxRef,
			BurnTxRef:     rec.BurnTxRef,
			Attempts:      rec.Attempts,
		})
	}
}
