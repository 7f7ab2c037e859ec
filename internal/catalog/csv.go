// Package catalog reads product catalogs from Shopify CSV exports and keeps
// them in a staging store the search index is rebuilt from.
package catalog

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AlamKhalidDev/product-search/internal/domain"
	"github.com/AlamKhalidDev/product-search/pkg/slug"
)

// Shopify export columns.
const (
	ColID              = "ID"
	ColTitle           = "TITLE"
	ColHandle          = "HANDLE"
	ColDescriptionHTML = "DESCRIPTION_HTML"
	ColBodyHTML        = "BODY_HTML"
	ColVendor          = "VENDOR"
	ColTags            = "TAGS"
	ColFeaturedImage   = "FEATURED_IMAGE"
	ColPriceRange      = "PRICE_RANGE_V2"
	ColCreatedAt       = "CREATED_AT"
	ColUpdatedAt       = "UPDATED_AT"
	ColProductType     = "PRODUCT_TYPE"
	ColStatus          = "STATUS"
	ColTotalInventory  = "TOTAL_INVENTORY"
	ColSEO             = "SEO"
)

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// RowError describes a row that was skipped.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

// ParseResult holds the products read from an export and the rows skipped.
type ParseResult struct {
	Products []domain.Product
	Skipped  []RowError
}

type featuredImage struct {
	URL string `json:"url"`
}

type priceRange struct {
	MinVariantPrice struct {
		Amount json.Number `json:"amount"`
	} `json:"min_variant_price"`
}

type seo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Parser converts export rows to products.
type Parser struct {
	now   func() time.Time
	newID func() string
}

// NewParser creates a parser stamping missing dates with the current time.
func NewParser() *Parser {
	return &Parser{now: time.Now, newID: uuid.NewString}
}

// Parse reads a whole export. Rows that cannot become a product are
// reported in Skipped; only malformed CSV or a bad header fail the call.
func (p *Parser) Parse(r io.Reader) (*ParseResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		cols[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	if _, ok := cols[ColTitle]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, ColTitle)
	}

	res := &ParseResult{Products: []domain.Product{}}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)

		get := func(col string) string {
			i, ok := cols[col]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		product, err := p.row(get)
		if err != nil {
			res.Skipped = append(res.Skipped, RowError{Line: line, Err: err})
			continue
		}
		res.Products = append(res.Products, product)
	}
	return res, nil
}

// ParseFile parses the export at path.
func (p *Parser) ParseFile(path string) (*ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	res, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return res, nil
}

func (p *Parser) row(get func(string) string) (domain.Product, error) {
	title := get(ColTitle)
	if title == "" {
		return domain.Product{}, errors.New("empty title")
	}

	now := p.now().UTC()
	createdAt, err := parseTime(get(ColCreatedAt), now)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", ColCreatedAt, err)
	}
	updatedAt, err := parseTime(get(ColUpdatedAt), createdAt)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", ColUpdatedAt, err)
	}

	product := domain.Product{
		ID:          get(ColID),
		Title:       title,
		Handle:      get(ColHandle),
		Description: get(ColDescriptionHTML),
		Vendor:      get(ColVendor),
		Tags:        SplitTags(get(ColTags)),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
		ProductType: get(ColProductType),
		Status:      strings.ToUpper(get(ColStatus)),
	}
	if product.ID == "" {
		product.ID = p.newID()
	}
	if product.Handle == "" {
		product.Handle = slug.Generate(title)
	}
	if product.Description == "" {
		product.Description = get(ColBodyHTML)
	}
	if product.Status == "" {
		product.Status = domain.StatusActive.IndexValue()
	}
	if n, err := strconv.Atoi(get(ColTotalInventory)); err == nil {
		product.TotalInventory = n
	}

	var img featuredImage
	if decodeLenient(get(ColFeaturedImage), &img) {
		product.Image = img.URL
	}
	var price priceRange
	if decodeLenient(get(ColPriceRange), &price) {
		if f, err := price.MinVariantPrice.Amount.Float64(); err == nil {
			product.Price = f
		}
	}
	var meta seo
	if decodeLenient(get(ColSEO), &meta) {
		product.SeoTitle = meta.Title
		product.SeoDescription = meta.Description
	}
	return product, nil
}

// SplitTags splits a comma-joined tag list, dropping empty entries.
func SplitTags(raw string) []string {
	tags := []string{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// decodeLenient reports whether raw held valid JSON for dst. Blank and
// malformed values are treated as absent.
func decodeLenient(raw string, dst any) bool {
	if raw == "" || raw == "null" {
		return false
	}
	return json.Unmarshal([]byte(raw), dst) == nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

func parseTime(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}

// FileSource lists products straight from a CSV export.
type FileSource struct {
	Path   string
	Parser *Parser
}

// ListProducts parses the export on every call.
func (s FileSource) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parser := s.Parser
	if parser == nil {
		parser = NewParser()
	}
	res, err := parser.ParseFile(s.Path)
	if err != nil {
		return nil, err
	}
	return res.Products, nil
}
