// Package nutrition turns consumption events and catalog products into
// scaled per-event views and daily summaries.
package nutrition

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "nutritrack/internal/errors"
	"nutritrack/internal/model"
)

// Per is the quantity that catalog nutrient values refer to.
const Per = 100.0

// UnspecifiedMeal groups events logged without a meal type.
const UnspecifiedMeal = "unspecified"

// Nutrients holds the four tracked metrics.
type Nutrients struct {
	Kcal  float64 `json:"kcal"`
	Carbs float64 `json:"carbs"`
	Prots float64 `json:"prots"`
	Fats  float64 `json:"fats"`
}

// Add returns the field-wise sum.
func (n Nutrients) Add(o Nutrients) Nutrients {
	return Nutrients{
		Kcal:  n.Kcal + o.Kcal,
		Carbs: n.Carbs + o.Carbs,
		Prots: n.Prots + o.Prots,
		Fats:  n.Fats + o.Fats,
	}
}

// Scale applies value * quantity / 100 to every nutrient of p. No rounding.
func Scale(p model.Product, quantity float64) Nutrients {
	return Nutrients{
		Kcal:  p.Kcal * quantity / Per,
		Carbs: p.Carbs * quantity / Per,
		Prots: p.Prots * quantity / Per,
		Fats:  p.Fats * quantity / Per,
	}
}

// ScaledProduct is a product with nutrients scaled to an event's quantity.
type ScaledProduct struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Nutrients
}

// Entry is a consumption event enriched with its scaled product.
type Entry struct {
	ID       uuid.UUID      `json:"id"`
	Quantity float64        `json:"quantity"`
	Date     time.Time      `json:"date"`
	Type     model.MealType `json:"type,omitempty"`
	Product  ScaledProduct  `json:"product"`
}

// Report is the enriched events of a query plus their flat summary.
type Report struct {
	UserProducts []Entry   `json:"userProducts"`
	Summary      Nutrients `json:"summary"`
}

// MealGroup is the slice of a report belonging to one meal type.
type MealGroup struct {
	Type         string    `json:"type"`
	UserProducts []Entry   `json:"userProducts"`
	Summary      Nutrients `json:"summary"`
}

// Enrich scales p to the event's quantity.
func Enrich(up model.UserProduct, p model.Product) Entry {
	return Entry{
		ID:       up.ID,
		Quantity: up.Quantity,
		Date:     up.Date,
		Type:     up.Type,
		Product: ScaledProduct{
			ID:        p.ID,
			Name:      p.Name,
			Nutrients: Scale(p, up.Quantity),
		},
	}
}

// Aggregate joins events with products and folds the summary in event order.
// An event whose product is missing fails the whole batch with ErrInconsistent;
// skipping it would silently understate the totals.
func Aggregate(events []model.UserProduct, products []model.Product) (*Report, error) {
	byID := make(map[uuid.UUID]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	report := &Report{UserProducts: make([]Entry, 0, len(events))}
	for _, up := range events {
		p, ok := byID[up.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: user product %s references missing product %s",
				apperrors.ErrInconsistent, up.ID, up.ProductID)
		}
		entry := Enrich(up, p)
		report.UserProducts = append(report.UserProducts, entry)
		report.Summary = report.Summary.Add(entry.Product.Nutrients)
	}
	return report, nil
}

// ProductIDs returns the distinct product ids of events in first-seen order.
func ProductIDs(events []model.UserProduct) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(events))
	ids := make([]uuid.UUID, 0, len(events))
	for _, up := range events {
		if _, ok := seen[up.ProductID]; ok {
			continue
		}
		seen[up.ProductID] = struct{}{}
		ids = append(ids, up.ProductID)
	}
	return ids
}

// GroupByMeal splits entries by meal type, in day order, with events without
// a recognised type last. Empty groups are omitted. Entry order within a
// group is kept.
func GroupByMeal(entries []Entry) []MealGroup {
	buckets := make(map[string][]Entry)
	for _, e := range entries {
		key := UnspecifiedMeal
		if e.Type.Valid() {
			key = string(e.Type)
		}
		buckets[key] = append(buckets[key], e)
	}

	order := make([]string, 0, len(model.MealTypes)+1)
	for _, mt := range model.MealTypes {
		order = append(order, string(mt))
	}
	order = append(order, UnspecifiedMeal)

	var groups []MealGroup
	for _, key := range order {
		bucket, ok := buckets[key]
		if !ok {
			continue
		}
		g := MealGroup{Type: key, UserProducts: bucket}
		for _, e := range bucket {
			g.Summary = g.Summary.Add(e.Product.Nutrients)
		}
		groups = append(groups, g)
	}
	return groups
}
