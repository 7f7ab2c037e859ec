package pagination

// Default page-based window.
const (
	DefaultPage = 1
	DefaultSize = 10
	MaxSize     = 100

	// MaxWindow is the deepest hit paging may reach, the engine's result window.
	MaxWindow = 10000
)

// Params is a 1-based page request.
type Params struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

// DefaultParams returns the first page at the default size.
func DefaultParams() Params {
	return Params{Page: DefaultPage, Size: DefaultSize}
}

// New builds Params, substituting defaults for non-positive values and
// capping size at MaxSize.
func New(page, size int) Params {
	p := DefaultParams()
	if page > 0 {
		p.Page = page
	}
	if size > 0 {
		p.Size = min(size, MaxSize)
	}
	return p
}

// InWindow reports whether every hit of the page lies within the first window
// hits. Offset only makes sense for pages in the window.
func (p Params) InWindow(window int) bool {
	return p.Page > 0 && p.Size > 0 && p.Page <= window/p.Size
}

// Offset is the number of hits skipped before this page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Size
}

// Meta describes where a page sits within the full result set.
type Meta struct {
	Page       int  `json:"page"`
	Size       int  `json:"size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewMeta computes page metadata for total matching hits.
func NewMeta(total int, p Params) Meta {
	totalPages := 0
	if p.Size > 0 {
		totalPages = total / p.Size
		if total%p.Size > 0 {
			totalPages++
		}
	}

	return Meta{
		Page:       p.Page,
		Size:       p.Size,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    p.Page < totalPages,
		HasPrev:    p.Page > 1,
	}
}
