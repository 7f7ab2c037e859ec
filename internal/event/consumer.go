package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AlamKhalidDev/product-search/internal/domain"
	"github.com/AlamKhalidDev/product-search/internal/service"
	apperrors "github.com/AlamKhalidDev/product-search/pkg/errors"
	pkgkafka "github.com/AlamKhalidDev/product-search/pkg/kafka"
	"github.com/AlamKhalidDev/product-search/pkg/validator"
)

// TopicProductEvents carries every catalog product change.
var TopicProductEvents = pkgkafka.Topic("product", "events")

// AggregateProduct is the aggregate type stamped on product events.
const AggregateProduct = "product"

// ProductDeletedData is the payload of a product.deleted event.
type ProductDeletedData struct {
	ID string `json:"id"`
}

// Indexer is the part of the search service the consumer drives.
type Indexer interface {
	IndexProduct(ctx context.Context, input *service.ProductInput) error
	DeleteProduct(ctx context.Context, id string) error
}

// Stager mirrors applied changes into the catalog staging store so a later
// reindex sees them.
type Stager interface {
	Upsert(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id string) error
}

// Consumer applies catalog product events to the search index.
type Consumer struct {
	indexer Indexer
	stager  Stager
	logger  *slog.Logger
}

// NewConsumer creates a new event consumer for the search service.
func NewConsumer(indexer Indexer, logger *slog.Logger) *Consumer {
	return &Consumer{
		indexer: indexer,
		logger:  logger,
	}
}

// WithStager also writes every applied change to s.
func (c *Consumer) WithStager(s Stager) *Consumer {
	c.stager = s
	return c
}

// Handle processes a Kafka event based on its type. Payloads that can never
// be indexed are logged and acknowledged so they do not block the partition.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	var err error
	switch event.EventType {
	case pkgkafka.EventProductUpserted:
		err = c.handleUpserted(ctx, event)
	case pkgkafka.EventProductDeleted:
		err = c.handleDeleted(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	if err != nil && permanent(err) {
		c.logger.WarnContext(ctx, "dropping unprocessable event",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return err
}

func (c *Consumer) handleUpserted(ctx context.Context, event *pkgkafka.Event) error {
	var input service.ProductInput
	if err := event.UnmarshalData(&input); err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("unmarshal product.upserted data: %v", err))
	}
	if input.ID == "" {
		input.ID = event.AggregateID
	}

	if err := c.indexer.IndexProduct(ctx, &input); err != nil {
		return fmt.Errorf("index product from upserted event: %w", err)
	}
	if c.stager != nil {
		p := input.Product(time.Now().UTC())
		if err := c.stager.Upsert(ctx, &p); err != nil {
			return fmt.Errorf("stage product from upserted event: %w", err)
		}
	}

	c.logger.InfoContext(ctx, "indexed product from upserted event",
		slog.String("product_id", input.ID),
	)
	return nil
}

func (c *Consumer) handleDeleted(ctx context.Context, event *pkgkafka.Event) error {
	var data ProductDeletedData
	if err := event.UnmarshalData(&data); err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("unmarshal product.deleted data: %v", err))
	}
	if data.ID == "" {
		data.ID = event.AggregateID
	}

	if err := c.indexer.DeleteProduct(ctx, data.ID); err != nil {
		return fmt.Errorf("delete product from deleted event: %w", err)
	}
	if c.stager != nil {
		if err := c.stager.Delete(ctx, data.ID); err != nil {
			return fmt.Errorf("unstage product from deleted event: %w", err)
		}
	}

	c.logger.InfoContext(ctx, "removed product from deleted event",
		slog.String("product_id", data.ID),
	)
	return nil
}

// permanent reports whether retrying err cannot help.
func permanent(err error) bool {
	var valErr *validator.ValidationError
	return errors.As(err, &valErr) || errors.Is(err, apperrors.ErrInvalidInput)
}

// NewUpsertedEvent builds a product.upserted event for input.
func NewUpsertedEvent(source string, input *service.ProductInput) (*pkgkafka.Event, error) {
	return pkgkafka.NewEvent(pkgkafka.EventProductUpserted, input.ID, AggregateProduct, source, input)
}

// NewDeletedEvent builds a product.deleted event for id.
func NewDeletedEvent(source, id string) (*pkgkafka.Event, error) {
	return pkgkafka.NewEvent(pkgkafka.EventProductDeleted, id, AggregateProduct, source, ProductDeletedData{ID: id})
}
