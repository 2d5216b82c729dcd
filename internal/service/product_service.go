package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"nutritrack/internal/cache"
	apperrors "nutritrack/internal/errors"
	"nutritrack/internal/model"
	"nutritrack/internal/repository"
)

const (
	productCacheTTL = 5 * time.Minute
	// MinProductNameLength applies to product names and to search terms.
	MinProductNameLength = 3
)

// ProductInput carries the fields of a new product. Every nutrient is
// required; a missing one is rejected rather than stored as zero.
type ProductInput struct {
	Name  string   `json:"name"`
	Kcal  *float64 `json:"kcal"`
	Carbs *float64 `json:"carbs"`
	Prots *float64 `json:"prots"`
	Fats  *float64 `json:"fats"`
}

// ProductPatch carries the fields to change; nil fields are left alone.
type ProductPatch struct {
	Name  *string  `json:"name"`
	Kcal  *float64 `json:"kcal"`
	Carbs *float64 `json:"carbs"`
	Prots *float64 `json:"prots"`
	Fats  *float64 `json:"fats"`
}

// ProductService manages the product catalog.
type ProductService interface {
	Search(ctx context.Context, name string) ([]model.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Product, error)
	Create(ctx context.Context, in ProductInput) (*model.Product, error)
	Update(ctx context.Context, id uuid.UUID, patch ProductPatch) (*model.Product, error)
	// Delete removes the product and every consumption event referencing it.
	Delete(ctx context.Context, id uuid.UUID) (*model.Product, error)
	// Seed creates every product in order and returns how many were created.
	Seed(ctx context.Context, inputs []ProductInput) (int, error)
}

type productService struct {
	repo    repository.ProductRepository
	cache   *cache.Client
	timeout time.Duration
}

// NewProductService creates a catalog service. cache may be nil.
func NewProductService(repo repository.ProductRepository, cache *cache.Client, timeout time.Duration) ProductService {
	return &productService{repo: repo, cache: cache, timeout: timeout}
}

func (s *productService) cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("product:%s", id.String())
}

func (s *productService) Search(ctx context.Context, name string) ([]model.Product, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < MinProductNameLength {
		return nil, fmt.Errorf("%w: name must be at least %d characters", apperrors.ErrInvalidInput, MinProductNameLength)
	}

	ctx, cancel := storageContext(ctx, s.timeout)
	defer cancel()

	products, err := s.repo.SearchByName(ctx, name)
	if err != nil {
		return nil, unavailable("search products", err)
	}
	if products == nil {
		products = []model.Product{}
	}
	return products, nil
}

// Get reads through the cache.
func (s *productService) Get(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	ctx, cancel := storageContext(ctx, s.timeout)
	defer cancel()

	if data, _ := s.cache.Get(ctx, s.cacheKey(id)); data != nil {
		var cached model.Product
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr("find product", "product", err)
	}

	if payload, err := json.Marshal(product); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(id), payload, productCacheTTL)
	}
	return product, nil
}

func (s *productService) Create(ctx context.Context, in ProductInput) (*model.Product, error) {
	if in.Kcal == nil || in.Carbs == nil || in.Prots == nil || in.Fats == nil {
		return nil, fmt.Errorf("%w: kcal, carbs, prots and fats are required", apperrors.ErrInvalidInput)
	}
	product := &model.Product{
		Name:  strings.TrimSpace(in.Name),
		Kcal:  *in.Kcal,
		Carbs: *in.Carbs,
		Prots: *in.Prots,
		Fats:  *in.Fats,
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	ctx, cancel := storageContext(ctx, s.timeout)
	defer cancel()

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, unavailable("create product", err)
	}
	return product, nil
}

func (s *productService) Update(ctx context.Context, id uuid.UUID, patch ProductPatch) (*model.Product, error) {
	ctx, cancel := storageContext(ctx, s.timeout)
	defer cancel()

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr("find product", "product", err)
	}

	if patch.Name != nil {
		product.Name = strings.TrimSpace(*patch.Name)
	}
	for _, f := range []struct {
		dst *float64
		src *float64
	}{
		{&product.Kcal, patch.Kcal},
		{&product.Carbs, patch.Carbs},
		{&product.Prots, patch.Prots},
		{&product.Fats, patch.Fats},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, unavailable("update product", err)
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id))
	return product, nil
}

func (s *productService) Delete(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	ctx, cancel := storageContext(ctx, s.timeout)
	defer cancel()

	product, err := s.repo.DeleteCascade(ctx, id)
	if err != nil {
		return nil, notFoundOr("delete product", "product", err)
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id))
	return product, nil
}

func (s *productService) Seed(ctx context.Context, inputs []ProductInput) (int, error) {
	count := 0
	for i, in := range inputs {
		if _, err := s.Create(ctx, in); err != nil {
			return count, fmt.Errorf("seed product %d (%q): %w", i, in.Name, err)
		}
		count++
	}
	return count, nil
}

func validateProduct(p *model.Product) error {
	if utf8.RuneCountInString(p.Name) < MinProductNameLength {
		return fmt.Errorf("%w: name must be at least %d characters", apperrors.ErrInvalidInput, MinProductNameLength)
	}
	if p.Kcal < 0 || p.Carbs < 0 || p.Prots < 0 || p.Fats < 0 {
		return fmt.Errorf("%w: nutrient values must not be negative", apperrors.ErrInvalidInput)
	}
	return nil
}
