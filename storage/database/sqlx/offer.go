package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/offer"
)

const offerColumns = `id, title, company, location, hours, modality, details, deadline, start_date, is_active, created_at, updated_at`

type offerRepository struct {
	repo
}

var _ offer.Repository = (*offerRepository)(nil)

func NewOfferRepository(exec core.DBExecutor) *offerRepository {
	return &offerRepository{repo{exec: exec}}
}

func (r offerRepository) CreateOffer(ctx context.Context, o offer.Offer, exec ...core.DBExecutor) (offer.Offer, error) {
	const q = `
		INSERT INTO offers (title, company, location, hours, modality, details, deadline, start_date, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	err := r.getExec(exec).QueryRowxContext(
		ctx, q,
		o.Title, o.Company, o.Location, o.Hours, o.Modality, o.Details, o.Deadline, o.StartDate, o.IsActive,
		o.CreatedAt.UTC(), o.UpdatedAt.UTC(),
	).Scan(&o.ID)
	if err != nil {
		return offer.Offer{}, errors.Wrap(err, "inserting offer")
	}
	return o, nil
}

func (r offerRepository) GetOffer(ctx context.Context, id int64, exec ...core.DBExecutor) (offer.Offer, error) {
	var o offer.Offer
	err := r.getExec(exec).GetContext(ctx, &o, "SELECT "+offerColumns+" FROM offers WHERE id = $1", id)
	if err != nil {
		return offer.Offer{}, trapNoRowsErr(err, offer.ErrNotFound, "finding offer")
	}
	return o, nil
}

func (r offerRepository) QueryOffers(ctx context.Context, activeOnly bool, exec ...core.DBExecutor) ([]offer.Offer, error) {
	var w where
	if activeOnly {
		w.add("is_active = ?", true)
	}
	offers := make([]offer.Offer, 0)
	q := "SELECT " + offerColumns + " FROM offers" + w.String() + " ORDER BY created_at DESC, id DESC"
	if err := r.getExec(exec).SelectContext(ctx, &offers, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying offers")
	}
	return offers, nil
}

func (r offerRepository) DeactivateOffer(ctx context.Context, id int64, exec ...core.DBExecutor) (bool, error) {
	const q = `UPDATE offers SET is_active = FALSE, updated_at = $2 WHERE id = $1 AND is_active`
	updated, err := rowsAffected(r.getExec(exec).ExecContext(ctx, q, id, core.Now()))
	return updated, errors.Wrap(err, "deactivating offer")
}
