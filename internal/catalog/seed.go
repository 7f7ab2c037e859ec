package catalog

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/AlamKhalidDev/product-search/internal/domain"
	"github.com/AlamKhalidDev/product-search/pkg/slug"
)

var (
	seedVendors = []string{
		"Acme Apparel", "Northwind", "Harbor & Pine", "Zenith", "Kestrel Goods",
		"Lumen Studio", "Oakline", "Saltmarsh", "Tidewater", "Copperfield",
	}

	// seedTypes maps a product type to the nouns used in its titles.
	seedTypes = map[string][]string{
		"Shirts":      {"Shirt", "Oxford Shirt", "Linen Shirt", "Flannel Shirt"},
		"T-Shirts":    {"Tee", "Pocket Tee", "Long Sleeve Tee", "Graphic Tee"},
		"Jeans":       {"Jeans", "Slim Jeans", "Wide Leg Jeans", "Selvedge Jeans"},
		"Dresses":     {"Dress", "Midi Dress", "Maxi Dress", "Wrap Dress"},
		"Outerwear":   {"Jacket", "Parka", "Trench Coat", "Bomber Jacket"},
		"Knitwear":    {"Sweater", "Cardigan", "Turtleneck", "Knit Vest"},
		"Accessories": {"Scarf", "Beanie", "Belt", "Tote Bag"},
		"Footwear":    {"Sneakers", "Boots", "Loafers", "Sandals"},
	}

	seedPrefixes = []string{
		"Classic", "Relaxed", "Tailored", "Vintage", "Everyday", "Organic",
		"Washed", "Striped", "Quilted", "Cropped", "Heavyweight", "Lightweight",
	}

	seedColors = []string{
		"Black", "Navy", "Ivory", "Olive", "Rust", "Grey", "Sand",
		"Indigo", "Burgundy", "Forest", "Blush", "Mustard",
	}

	seedMaterials = []string{"cotton", "linen", "wool", "denim", "leather", "cashmere", "recycled"}

	seedDescriptions = []string{
		"<p>A %s built for everyday wear, cut from durable fabric that softens with every wash.</p>",
		"<p>The %s you will reach for all season. Easy to layer and easy to care for.</p>",
		"<p>Our take on the %s: clean lines, careful stitching and a fit that works on everyone.</p>",
		"<p>%s made in small batches from responsibly sourced materials.</p>",
	}

	seedStatuses = []string{"ACTIVE", "ACTIVE", "ACTIVE", "ACTIVE", "ACTIVE", "ACTIVE", "ACTIVE", "ACTIVE", "DRAFT", "ARCHIVED"}
)

// DeterministicID derives a stable UUID-shaped ID from namespace and index
// so regenerated catalogs keep their product IDs.
func DeterministicID(namespace string, index int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", namespace, index)))
	hex := fmt.Sprintf("%x", h[:16])
	return fmt.Sprintf("%s-%s-4%s-%x%s-%s",
		hex[0:8], hex[8:12], hex[13:16], 0x8|(h[8]&0x3), hex[17:20], hex[20:32])
}

// Generator produces synthetic catalogs for load testing and local setups.
type Generator struct {
	rng       *rand.Rand
	namespace string
	epoch     time.Time
}

// NewGenerator returns a generator whose output depends only on seed.
func NewGenerator(seed uint64) *Generator {
	return &Generator{
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), // #nosec G404 -- synthetic data
		namespace: "catalog-seed-" + strconv.FormatUint(seed, 10),
		epoch:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Generate returns n products with unique IDs and handles.
func (g *Generator) Generate(n int) []domain.Product {
	types := make([]string, 0, len(seedTypes))
	for t := range seedTypes {
		types = append(types, t)
	}
	slices.Sort(types)

	products := make([]domain.Product, 0, n)
	handles := make(map[string]int, n)
	for i := 0; i < n; i++ {
		productType := pick(g.rng, types)
		color := pick(g.rng, seedColors)
		noun := pick(g.rng, seedTypes[productType])
		title := fmt.Sprintf("%s %s %s", pick(g.rng, seedPrefixes), color, noun)

		handle := slug.Generate(title)
		if seen := handles[handle]; seen > 0 {
			handles[handle]++
			handle = fmt.Sprintf("%s-%d", handle, seen+1)
		} else {
			handles[handle] = 1
		}

		created := g.epoch.Add(time.Duration(g.rng.IntN(365*24)) * time.Hour)
		products = append(products, domain.Product{
			ID:             DeterministicID(g.namespace, i),
			Title:          title,
			Handle:         handle,
			Description:    fmt.Sprintf(pick(g.rng, seedDescriptions), strings.ToLower(noun)),
			Vendor:         pick(g.rng, seedVendors),
			Tags:           g.tags(color),
			Image:          fmt.Sprintf("https://cdn.example.com/products/%s.jpg", handle),
			Price:          g.price(),
			CreatedAt:      created,
			UpdatedAt:      created.Add(time.Duration(g.rng.IntN(90*24)) * time.Hour),
			ProductType:    productType,
			Status:         pick(g.rng, seedStatuses),
			TotalInventory: g.rng.IntN(250),
			SeoTitle:       title + " | Shop",
			SeoDescription: "Shop the " + strings.ToLower(title) + ".",
		})
	}
	return products
}

func (g *Generator) tags(color string) []string {
	tags := []string{strings.ToLower(color)}
	for _, m := range g.rng.Perm(len(seedMaterials))[:1+g.rng.IntN(2)] {
		tags = append(tags, seedMaterials[m])
	}
	return tags
}

// price spreads products across every price bucket, ending in .99 or .00.
func (g *Generator) price() float64 {
	tiers := [][2]float64{{5, 25}, {25, 50}, {50, 100}, {100, 400}}
	tier := tiers[g.rng.IntN(len(tiers))]
	whole := math.Floor(tier[0] + g.rng.Float64()*(tier[1]-tier[0]))
	if g.rng.IntN(2) == 0 {
		return whole + 0.99
	}
	return whole
}

func pick[T any](rng *rand.Rand, xs []T) T {
	return xs[rng.IntN(len(xs))]
}

// WriteCSV writes products as a Shopify export that Parser reads back.
func WriteCSV(w io.Writer, products []domain.Product) error {
	cw := csv.NewWriter(w)
	header := []string{
		ColID, ColTitle, ColHandle, ColDescriptionHTML, ColBodyHTML, ColVendor, ColTags,
		ColFeaturedImage, ColPriceRange, ColCreatedAt, ColUpdatedAt, ColProductType,
		ColStatus, ColTotalInventory, ColSEO,
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := range products {
		p := &products[i]
		image, err := json.Marshal(featuredImage{URL: p.Image})
		if err != nil {
			return err
		}
		var pr priceRange
		pr.MinVariantPrice.Amount = json.Number(strconv.FormatFloat(p.Price, 'f', 2, 64))
		price, err := json.Marshal(pr)
		if err != nil {
			return err
		}
		meta, err := json.Marshal(seo{Title: p.SeoTitle, Description: p.SeoDescription})
		if err != nil {
			return err
		}

		if err := cw.Write([]string{
			p.ID, p.Title, p.Handle, p.Description, "", p.Vendor, strings.Join(p.Tags, ", "),
			string(image), string(price), p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339),
			p.ProductType, p.Status, strconv.Itoa(p.TotalInventory), string(meta),
		}); err != nil {
			return fmt.Errorf("write product %s: %w", p.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
