package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "nutritrack/internal/errors"
	"nutritrack/internal/metrics"
	"nutritrack/internal/model"
	"nutritrack/internal/nutrition"
	"nutritrack/internal/repository"
)

// LogInput describes one consumption event to record.
type LogInput struct {
	ProductID string
	Quantity  float64
	// Date defaults to now.
	Date *time.Time
	Type model.MealType
}

// UpdateInput changes an event. Quantity is required; the rest is optional.
type UpdateInput struct {
	Quantity *float64
	Date     *time.Time
	Type     *model.MealType
}

// DayView is a day's report, with meal groups when requested.
type DayView struct {
	nutrition.Report
	Meals []nutrition.MealGroup `json:"meals,omitempty"`
}

// ConsumptionService records what users eat and reports it per day.
type ConsumptionService interface {
	Day(ctx context.Context, userID uuid.UUID, date string, grouped bool) (*DayView, error)
	Log(ctx context.Context, userID uuid.UUID, in LogInput) (*nutrition.Entry, error)
	Update(ctx context.Context, userID uuid.UUID, id string, in UpdateInput) (*nutrition.Entry, error)
	Delete(ctx context.Context, userID uuid.UUID, id string) error
}

type consumptionService struct {
	events   repository.UserProductRepository
	products repository.ProductRepository
	loc      *time.Location
	timeout  time.Duration
	now      func() time.Time
}

// NewConsumptionService creates the consumption service. Days are cut in loc.
func NewConsumptionService(events repository.UserProductRepository, products repository.ProductRepository, loc *time.Location, timeout time.Duration) ConsumptionService {
	if loc == nil {
		loc = time.UTC
	}
	return &consumptionService{
		events:   events,
		products: products,
		loc:      loc,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Day aggregates the user's events in the calendar day named by date.
func (s *consumptionService) Day(ctx context.Context, userID uuid.UUID, date string, grouped bool) (*DayView, error) {
	day, err := nutrition.ParseDay(date, s.loc)
	if err != nil {
		return nil, err
	}
	from, to := nutrition.DayWindow(day, s.loc)

	ctx, cancel := storageContext(ctx, s.timeout)
	defer cancel()

	events, err := s.events.ListByUserBetween(ctx, userID, from, to)
	if err != nil {
		return nil, unavailable("list user products", err)
	}
	products, err := s.products.FindByIDs(ctx, nutrition.ProductIDs(events))
	if err != nil {
		return nil, unavailable("find products", err)
	}

	report, err := nutrition.Aggregate(events, products)
	if err != nil {
		return nil, err
	}
	view := &DayView{Report: *report}
	if grouped {
		view.Meals = nutrition.GroupByMeal(report.UserProducts)
	}
	return view, nil
}

func (s *consumptionService) Log(ctx context.Context, userID uuid.UUID, in LogInput) (entry *nutrition.Entry, err error) {
	defer func() { metrics.ConsumptionEventsTotal.WithLabelValues("log", metrics.Result(err)).Inc() }()

	productID, err := uuid.Parse(in.ProductID)
	if err != nil {
		return nil, fmt.Errorf("%w: productId must be a valid id", apperrors.ErrInvalidInput)
	}
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be greater than 0", apperrors.ErrInvalidInput)
	}
	if in.Type != "" && !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown meal type %q", apperrors.ErrInvalidInput, in.Type)
	}

	date := s.now()
	if in.Date != nil {
		date = *in.Date
	}

	ctx, cancel := storageContext(ctx, s.timeout)
	defer cancel()

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, notFoundOr("find product", "product", err)
	}

	up := &model.UserProduct{
		UserID:    userID,
		ProductID: productID,
		Quantity:  in.Quantity,
		Date:      date.UTC(),
		Type:      in.Type,
	}
	if err := s.events.Create(ctx, up); err != nil {
		return nil, unavailable("create user product", err)
	}

	e := nutrition.Enrich(*up, *product)
	return &e, nil
}

func (s *consumptionService) Update(ctx context.Context, userID uuid.UUID, id string, in UpdateInput) (entry *nutrition.Entry, err error) {
	defer func() { metrics.ConsumptionEventsTotal.WithLabelValues("update", metrics.Result(err)).Inc() }()

	if in.Quantity == nil || *in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be greater than 0", apperrors.ErrInvalidInput)
	}
	if in.Type != nil && *in.Type != "" && !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown meal type %q", apperrors.ErrInvalidInput, *in.Type)
	}
	eventID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: user product", apperrors.ErrNotFound)
	}

	ctx, cancel := storageContext(ctx, s.timeout)
	defer cancel()

	up, err := s.events.FindForUser(ctx, userID, eventID)
	if err != nil {
		return nil, notFoundOr("find user product", "user product", err)
	}

	up.Quantity = *in.Quantity
	if in.Date != nil {
		up.Date = in.Date.UTC()
	}
	if in.Type != nil {
		up.Type = *in.Type
	}

	// Resolve the product before writing so a dangling reference stores nothing.
	product, err := s.products.FindByID(ctx, up.ProductID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user product %s references missing product %s",
			apperrors.ErrInconsistent, up.ID, up.ProductID)
	}
	if err != nil {
		return nil, unavailable("find product", err)
	}

	if err := s.events.Update(ctx, up); err != nil {
		return nil, unavailable("update user product", err)
	}
	e := nutrition.Enrich(*up, *product)
	return &e, nil
}

func (s *consumptionService) Delete(ctx context.Context, userID uuid.UUID, id string) (err error) {
	defer func() { metrics.ConsumptionEventsTotal.WithLabelValues("delete", metrics.Result(err)).Inc() }()

	eventID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: user product", apperrors.ErrNotFound)
	}

	ctx, cancel := storageContext(ctx, s.timeout)
	defer cancel()

	if err := s.events.DeleteForUser(ctx, userID, eventID); err != nil {
		return notFoundOr("delete user product", "user product", err)
	}
	return nil
}
