package elasticsearch

// buildIndexMapping returns the settings and mapping for the products index.
// Text fields carry keyword sub-fields for sorting and faceting, and the
// title carries a completion sub-field for typeahead.
func buildIndexMapping() string {
	return `{
  "settings": {
    "index": {
      "number_of_shards": 3,
      "number_of_replicas": 1,
      "refresh_interval": "30s"
    }
  },
  "mappings": {
    "properties": {
      "id":             { "type": "keyword" },
      "title":          { "type": "text", "fields": { "keyword": { "type": "keyword" }, "completion": { "type": "completion" } } },
      "handle":         { "type": "keyword" },
      "description":    { "type": "text" },
      "vendor":         { "type": "text", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 } } },
      "tags":           { "type": "keyword" },
      "image":          { "type": "keyword" },
      "price":          { "type": "float" },
      "createdAt":      { "type": "date" },
      "updatedAt":      { "type": "date" },
      "productType":    { "type": "keyword" },
      "status":         { "type": "keyword" },
      "totalInventory": { "type": "integer" },
      "seoTitle":       { "type": "text" },
      "seoDescription": { "type": "text" }
    }
  }
}`
}
