package inmemdb

import (
	"context"
	"sort"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/offer"
)

type offerRepository struct {
	db *DB
}

var _ offer.Repository = (*offerRepository)(nil)

func NewOfferRepository(db *DB) offer.Repository {
	return &offerRepository{db: db}
}

func (repo *offerRepository) CreateOffer(_ context.Context, o offer.Offer, exec ...core.DBExecutor) (offer.Offer, error) {
	defer repo.db.lockWrite(exec)()

	o.ID = repo.db.nextID("offers")
	repo.db.tables.offers[o.ID] = o
	return o, nil
}

func (repo *offerRepository) GetOffer(_ context.Context, id int64, _ ...core.DBExecutor) (offer.Offer, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if o, ok := repo.db.tables.offers[id]; ok {
		return o, nil
	}
	return offer.Offer{}, offer.ErrNotFound
}

func (repo *offerRepository) QueryOffers(_ context.Context, activeOnly bool, _ ...core.DBExecutor) ([]offer.Offer, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	offers := make([]offer.Offer, 0, len(repo.db.tables.offers))
	for _, o := range repo.db.tables.offers {
		if activeOnly && !o.IsActive {
			continue
		}
		offers = append(offers, o)
	}
	sort.Slice(offers, func(i, j int) bool {
		return newerFirst(offers[i].CreatedAt, offers[j].CreatedAt, offers[i].ID, offers[j].ID)
	})
	return offers, nil
}

func (repo *offerRepository) DeactivateOffer(_ context.Context, id int64, exec ...core.DBExecutor) (bool, error) {
	defer repo.db.lockWrite(exec)()

	o, ok := repo.db.tables.offers[id]
	if !ok || !o.IsActive {
		return false, nil
	}
	o.IsActive = false
	o.UpdatedAt = core.Now()
	repo.db.tables.offers[id] = o
	return true, nil
}
