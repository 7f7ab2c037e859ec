package domain

import (
	"time"
)

// Product is a catalog document as stored in the search index.
type Product struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Handle         string    `json:"handle"`
	Description    string    `json:"description"`
	Vendor         string    `json:"vendor"`
	Tags           []string  `json:"tags"`
	Image          string    `json:"image,omitempty"`
	Price          float64   `json:"price"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	ProductType    string    `json:"productType"`
	Status         string    `json:"status"`
	TotalInventory int       `json:"totalInventory"`
	SeoTitle       string    `json:"seoTitle"`
	SeoDescription string    `json:"seoDescription"`
}

// ProductHit is a search result entry: the stored product plus the fragments
// that matched. Only responses carry it; it is never indexed.
type ProductHit struct {
	Product
	Highlight *Highlight `json:"highlight,omitempty"`
}

// Highlight holds marked-up fragments for fields that matched the text query.
type Highlight struct {
	Title       []string `json:"title,omitempty"`
	Description []string `json:"description,omitempty"`
}

// Empty reports whether no fragment was returned.
func (h *Highlight) Empty() bool {
	return h == nil || (len(h.Title) == 0 && len(h.Description) == 0)
}
