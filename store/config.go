package store

// Config holds collection layout settings shared by every backend.
type Config struct {
	// PartitionKeyField is the document attribute holding the partition key.
	// Default: "number"
	PartitionKeyField string

	// IDField is the document attribute holding the document id.
	// Default: "id"
	IDField string

	// DefaultPageSize applies when a listing or query gives no page size hint.
	// Default: 100 (the Cosmos DB service default)
	// Max: 1000
	DefaultPageSize int32
}

// DefaultConfig returns the layout used by the sample collection.
func DefaultConfig() Config {
	return Config{
		PartitionKeyField: "number",
		IDField:           "id",
		DefaultPageSize:   100,
	}
}

// Validate fills in defaults and clamps values to acceptable bounds.
func (c *Config) Validate() {
	if c.PartitionKeyField == "" {
		c.PartitionKeyField = "number"
	}
	if c.IDField == "" {
		c.IDField = "id"
	}
	if c.DefaultPageSize < 1 {
		c.DefaultPageSize = 100
	}
	if c.DefaultPageSize > 1000 {
		c.DefaultPageSize = 1000
	}
}

// PageSize resolves a page size hint against the configured default.
func (c Config) PageSize(hint int32) int32 {
	if hint > 0 {
		return hint
	}
	return c.DefaultPageSize
}
