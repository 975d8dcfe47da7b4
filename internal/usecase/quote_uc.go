package usecase

import "github.com/pranit-garg/Dispatch/internal/domain/model"

// QuoteUseCase is the price oracle: it resolves a (policy, job type)
// pair to a quote. Pure lookup with no state; an unknown pair falls
// back to the cheapest known price.
type QuoteUseCase interface {
	Resolve(policy model.Policy, jobType model.JobType) model.Quote
}

var _ QuoteUseCase = (*quoteUC)(nil)

type quoteUC struct {
	network string
}

func NewQuoteUseCase(network string) QuoteUseCase {
	return &quoteUC{network: network}
}

func (q *quoteUC) Resolve(policy model.Policy, jobType model.JobType) model.Quote {
	resolved := model.ResolvePolicy(policy, jobType)
	return model.Quote{
		Price:          model.PriceFor(resolved, jobType),
		ResolvedPolicy: resolved,
		Network:        q.network,
	}
}
