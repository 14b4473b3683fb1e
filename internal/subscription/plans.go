package subscription

import "errors"

// Plan is a purchasable subscription package. Classes is the number of
// credits loaded on purchase; ValidityDays bounds the booking window.
type Plan struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Classes      int    `json:"classes"`
	ValidityDays int    `json:"validity_days"`
	PriceCents   int64  `json:"price_cents"`
}

var ErrUnknownPlan = errors.New("unknown plan")

func Plans() []Plan {
	return []Plan{
		{
			ID:           "starter_4",
			Name:         "Starter 4",
			Description:  "4 classes, valid one month",
			Classes:      4,
			ValidityDays: 30,
			PriceCents:   9000,
		},
		{
			ID:           "reformer_8",
			Name:         "Reformer 8",
			Description:  "8 classes, valid one month",
			Classes:      8,
			ValidityDays: 30,
			PriceCents:   16000,
		},
		{
			ID:           "reformer_12",
			Name:         "Reformer 12",
			Description:  "12 classes, valid six weeks",
			Classes:      12,
			ValidityDays: 42,
			PriceCents:   22000,
		},
		{
			ID:           "studio_20",
			Name:         "Studio 20",
			Description:  "20 classes, valid two months",
			Classes:      20,
			ValidityDays: 60,
			PriceCents:   34000,
		},
	}
}

func FindPlan(planID string) (Plan, error) {
	for _, p := range Plans() {
		if p.ID == planID {
			return p, nil
		}
	}
	return Plan{}, ErrUnknownPlan
}
