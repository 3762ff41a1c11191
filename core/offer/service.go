package offer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/practicas-ubb/practicas/core"
)

var ErrNotFound = core.NewNotFoundError("offer")

type (
	Repository interface {
		CreateOffer(ctx context.Context, o Offer, exec ...core.DBExecutor) (Offer, error)
		GetOffer(ctx context.Context, id int64, exec ...core.DBExecutor) (Offer, error)
		// QueryOffers returns the offers newest first; activeOnly drops deactivated offers.
		QueryOffers(ctx context.Context, activeOnly bool, exec ...core.DBExecutor) ([]Offer, error)
		// DeactivateOffer flips is_active off; it reports false when the offer was already inactive.
		DeactivateOffer(ctx context.Context, id int64, exec ...core.DBExecutor) (bool, error)
	}

	Service interface {
		Create(ctx context.Context, no NewOffer) (Offer, error)
		Get(ctx context.Context, id int64) (Offer, error)
		// QueryAll lists every offer, for coordination.
		QueryAll(ctx context.Context) ([]Offer, error)
		// QueryOpen lists the active, non-expired offers students can apply to.
		QueryOpen(ctx context.Context) ([]Offer, error)
		// Deactivate is one-way and idempotent: deactivating an inactive offer returns it unchanged.
		Deactivate(ctx context.Context, id int64) (Offer, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, no NewOffer) (Offer, error) {
	now := core.Now()
	return svc.repo.CreateOffer(ctx, Offer{
		Title:     no.Title,
		Company:   no.Company,
		Location:  no.Location,
		Hours:     no.Hours,
		Modality:  no.Modality,
		Details:   no.Details,
		Deadline:  no.Deadline,
		StartDate: no.StartDate,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) Get(ctx context.Context, id int64) (Offer, error) {
	return svc.repo.GetOffer(ctx, id)
}

func (svc *service) QueryAll(ctx context.Context) ([]Offer, error) {
	return svc.repo.QueryOffers(ctx, false /* activeOnly */)
}

func (svc *service) QueryOpen(ctx context.Context) ([]Offer, error) {
	offers, err := svc.repo.QueryOffers(ctx, true /* activeOnly */)
	if err != nil {
		return nil, errors.Wrap(err, "querying active offers")
	}
	now := core.Now()
	open := make([]Offer, 0, len(offers))
	for _, o := range offers {
		if o.IsOpen(now) {
			open = append(open, o)
		}
	}
	return open, nil
}

func (svc *service) Deactivate(ctx context.Context, id int64) (Offer, error) {
	if _, err := svc.repo.DeactivateOffer(ctx, id); err != nil {
		return Offer{}, errors.Wrap(err, "deactivating offer")
	}
	return svc.repo.GetOffer(ctx, id)
}
