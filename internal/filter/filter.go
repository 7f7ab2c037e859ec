package filter

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	govalidator "github.com/go-playground/validator/v10"

	"github.com/AlamKhalidDev/product-search/internal/domain"
	"github.com/AlamKhalidDev/product-search/pkg/pagination"
	"github.com/AlamKhalidDev/product-search/pkg/validator"
)

// Autocomplete limits.
const (
	DefaultAutocompleteLimit = 5
	MaxAutocompleteLimit     = 20
)

// searchParams mirrors the raw query string of a search call.
type searchParams struct {
	Text        string `query:"q"`
	Vendor      string `query:"vendor"`
	ProductType string `query:"productType"`
	Tag         string `query:"tag"`
	Status      string `query:"status" validate:"omitempty,oneof=active draft archived"`
	MinPrice    string `query:"minPrice"`
	MaxPrice    string `query:"maxPrice"`
	Sort        string `query:"sort" validate:"omitempty,oneof=relevance createdAt price title"`
	Order       string `query:"order" validate:"omitempty,oneof=asc desc"`
	Page        string `query:"page" validate:"omitempty,posint"`
	Size        string `query:"size" validate:"omitempty,posint=100"` // pagination.MaxSize
}

func init() {
	validator.RegisterStructValidation(searchWindow, searchParams{})
}

// searchWindow rejects pages whose hits lie beyond pagination.MaxWindow.
// Malformed page or size values are left to their field rules.
func searchWindow(sl govalidator.StructLevel) {
	p := sl.Current().Interface().(searchParams)
	page, size := pagination.DefaultPage, pagination.DefaultSize
	if p.Page != "" {
		page = atoi(p.Page)
	}
	if p.Size != "" {
		size = atoi(p.Size)
	}
	if page <= 0 || size <= 0 || size > pagination.MaxSize {
		return
	}
	if !(pagination.Params{Page: page, Size: size}).InWindow(pagination.MaxWindow) {
		sl.ReportError(p.Page, "page", "Page", "window", strconv.Itoa(pagination.MaxWindow))
	}
}

type autocompleteParams struct {
	Text  string `query:"q"`
	Limit string `query:"limit" validate:"omitempty,posint"`
}

// NormalizeSearch turns raw query parameters into a SearchRequest. Closed
// enumerations and page/size are validated; prices are parsed leniently.
func NormalizeSearch(values url.Values) (domain.SearchRequest, error) {
	p := searchParams{
		Text:        strings.TrimSpace(values.Get("q")),
		Vendor:      joined(values, "vendor"),
		ProductType: joined(values, "productType"),
		Tag:         joined(values, "tag"),
		Status:      values.Get("status"),
		MinPrice:    values.Get("minPrice"),
		MaxPrice:    values.Get("maxPrice"),
		Sort:        values.Get("sort"),
		Order:       values.Get("order"),
		Page:        values.Get("page"),
		Size:        values.Get("size"),
	}
	if err := validator.Validate(p); err != nil {
		return domain.SearchRequest{}, fmt.Errorf("normalize search: %w", err)
	}

	req := domain.SearchRequest{
		Text: p.Text,
		Filters: domain.FilterSet{
			Vendors:      SplitValues(p.Vendor),
			ProductTypes: SplitValues(p.ProductType),
			Tags:         SplitValues(p.Tag),
			Price: domain.PriceRange{
				Min: parseLenientFloat(p.MinPrice),
				Max: parseLenientFloat(p.MaxPrice),
			},
		},
		Sort: domain.DefaultSort(),
	}
	if p.Status != "" {
		s := domain.Status(p.Status)
		req.Filters.Status = &s
	}
	if p.Sort != "" {
		req.Sort.Field = domain.SortField(p.Sort)
	}
	if p.Order != "" {
		req.Sort.Order = domain.SortOrder(p.Order)
	}

	page := pagination.New(atoi(p.Page), atoi(p.Size))
	req.Page, req.PageSize = page.Page, page.Size

	return req, nil
}

// NormalizeAutocomplete validates a typeahead call. A blank prefix is valid
// and yields an empty Prefix.
func NormalizeAutocomplete(values url.Values) (domain.AutocompleteRequest, error) {
	p := autocompleteParams{
		Text:  strings.TrimSpace(values.Get("q")),
		Limit: values.Get("limit"),
	}
	if err := validator.Validate(p); err != nil {
		return domain.AutocompleteRequest{}, fmt.Errorf("normalize autocomplete: %w", err)
	}

	limit := DefaultAutocompleteLimit
	if n := atoi(p.Limit); n > 0 {
		limit = min(n, MaxAutocompleteLimit)
	}
	return domain.AutocompleteRequest{Prefix: p.Text, Limit: limit}, nil
}

// SplitValues splits a comma-joined list, trimming parts, dropping empties
// and duplicates while keeping first-seen order.
func SplitValues(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		v := strings.TrimSpace(part)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// joined merges repeated keys (?vendor=a&vendor=b) into one comma list.
func joined(values url.Values, key string) string {
	return strings.Join(values[key], ",")
}

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// parseLenientFloat reads the longest numeric prefix ("12.5usd" is 12.5).
// Anything without one, or a non-finite value, is absent.
func parseLenientFloat(raw string) *float64 {
	m := leadingNumber.FindString(strings.TrimSpace(raw))
	if m == "" {
		return nil
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// atoi returns 0 for anything that is not an integer; callers already
// validated present values.
func atoi(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}
