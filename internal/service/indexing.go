package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AlamKhalidDev/product-search/internal/domain"
	apperrors "github.com/AlamKhalidDev/product-search/pkg/errors"
	"github.com/AlamKhalidDev/product-search/pkg/slug"
	"github.com/AlamKhalidDev/product-search/pkg/validator"
)

// CatalogSource lists every product of the staged catalog.
type CatalogSource interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// ErrNoCatalog is returned by Reindex when no catalog source is configured.
var ErrNoCatalog = errors.New("no catalog source configured")

// ProductInput is a product pushed for indexing over the API or the event bus.
type ProductInput struct {
	ID             string     `json:"id" validate:"required"`
	Title          string     `json:"title" validate:"required"`
	Handle         string     `json:"handle"`
	Description    string     `json:"description"`
	Vendor         string     `json:"vendor"`
	Tags           []string   `json:"tags"`
	Image          string     `json:"image"`
	Price          float64    `json:"price" validate:"gte=0"`
	ProductType    string     `json:"productType"`
	Status         string     `json:"status" validate:"omitempty,oneof=active draft archived ACTIVE DRAFT ARCHIVED"`
	TotalInventory int        `json:"totalInventory"`
	SeoTitle       string     `json:"seoTitle"`
	SeoDescription string     `json:"seoDescription"`
	CreatedAt      *time.Time `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt"`
}

// InputFromProduct is the inverse of Product, used to publish staged
// products as change events.
func InputFromProduct(p *domain.Product) ProductInput {
	created, updated := p.CreatedAt, p.UpdatedAt
	return ProductInput{
		ID:             p.ID,
		Title:          p.Title,
		Handle:         p.Handle,
		Description:    p.Description,
		Vendor:         p.Vendor,
		Tags:           p.Tags,
		Image:          p.Image,
		Price:          p.Price,
		ProductType:    p.ProductType,
		Status:         p.Status,
		TotalInventory: p.TotalInventory,
		SeoTitle:       p.SeoTitle,
		SeoDescription: p.SeoDescription,
		CreatedAt:      &created,
		UpdatedAt:      &updated,
	}
}

// Product converts the input into an index document. A missing handle is
// derived from the title and status is stored upper-case.
func (in *ProductInput) Product(now time.Time) domain.Product {
	p := domain.Product{
		ID:             in.ID,
		Title:          in.Title,
		Handle:         in.Handle,
		Description:    in.Description,
		Vendor:         in.Vendor,
		Tags:           in.Tags,
		Image:          in.Image,
		Price:          in.Price,
		ProductType:    in.ProductType,
		Status:         strings.ToUpper(in.Status),
		TotalInventory: in.TotalInventory,
		SeoTitle:       in.SeoTitle,
		SeoDescription: in.SeoDescription,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p.Handle == "" {
		p.Handle = slug.Generate(in.Title)
	}
	if p.Status == "" {
		p.Status = domain.StatusActive.IndexValue()
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if in.CreatedAt != nil {
		p.CreatedAt = in.CreatedAt.UTC()
	}
	if in.UpdatedAt != nil {
		p.UpdatedAt = in.UpdatedAt.UTC()
	}
	return p
}

// IndexProduct validates and indexes a single product.
func (s *SearchService) IndexProduct(ctx context.Context, input *ProductInput) error {
	if err := validator.Validate(input); err != nil {
		return err
	}

	p := input.Product(time.Now().UTC())
	err := s.engine.Index(ctx, &p)
	observe("index", err)
	if err != nil {
		return fmt.Errorf("index product: %w", err)
	}

	s.logger.InfoContext(ctx, "product indexed",
		slog.String("product_id", p.ID),
		slog.String("handle", p.Handle),
	)
	return nil
}

// DeleteProduct removes a product from the search index.
func (s *SearchService) DeleteProduct(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("id is required")
	}

	err := s.engine.Delete(ctx, id)
	observe("delete", err)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	s.logger.InfoContext(ctx, "product deleted from index", slog.String("product_id", id))
	return nil
}

// BulkIndex validates inputs and indexes the valid ones. It returns the
// number indexed; invalid inputs are skipped and logged.
func (s *SearchService) BulkIndex(ctx context.Context, inputs []ProductInput) (int, error) {
	now := time.Now().UTC()
	products := make([]domain.Product, 0, len(inputs))
	for i := range inputs {
		if err := validator.Validate(&inputs[i]); err != nil {
			s.logger.WarnContext(ctx, "bulk index: skipping invalid product",
				slog.Int("position", i),
				slog.String("product_id", inputs[i].ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		products = append(products, inputs[i].Product(now))
	}

	if err := s.indexAll(ctx, products); err != nil {
		return 0, fmt.Errorf("bulk index: %w", err)
	}

	s.logger.InfoContext(ctx, "bulk index completed",
		slog.Int("count", len(products)),
		slog.Int("skipped", len(inputs)-len(products)),
	)
	return len(products), nil
}

// Reindex rebuilds the index from the catalog: drop and recreate the index,
// bulk load every product, then refresh.
func (s *SearchService) Reindex(ctx context.Context) (int, error) {
	if s.catalog == nil {
		return 0, fmt.Errorf("reindex: %w", ErrNoCatalog)
	}

	start := time.Now()
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return 0, fmt.Errorf("reindex: list catalog: %w", err)
	}

	if err := s.engine.CreateIndex(ctx); err != nil {
		observe("create_index", err)
		return 0, fmt.Errorf("reindex: create index: %w", err)
	}
	if err := s.indexAll(ctx, products); err != nil {
		return 0, fmt.Errorf("reindex: %w", err)
	}

	s.logger.InfoContext(ctx, "reindex completed",
		slog.Int("count", len(products)),
		slog.Duration("took", time.Since(start)),
	)
	return len(products), nil
}

// DropIndex deletes the product index.
func (s *SearchService) DropIndex(ctx context.Context) error {
	err := s.engine.DeleteIndex(ctx)
	observe("delete_index", err)
	if err != nil {
		return fmt.Errorf("drop index: %w", err)
	}
	s.logger.InfoContext(ctx, "index dropped")
	return nil
}

func (s *SearchService) indexAll(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	err := s.engine.BulkIndex(ctx, products)
	observe("bulk", err)
	if err != nil {
		return err
	}
	if err := s.engine.Refresh(ctx); err != nil {
		observe("refresh", err)
		return fmt.Errorf("refresh: %w", err)
	}
	return nil
}
