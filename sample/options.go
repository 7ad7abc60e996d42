package sample

import "time"

// Options controls the sample run. DefaultOptions reproduces the classic flow:
// ten records numbered 0..900, pages of three, delete everything below 600,
// expect four survivors.
// The zero Options inserts nothing and expects an empty collection.
type Options struct {
	// Count is the number of records inserted.
	// Default: 10
	Count int

	// Step is the gap between consecutive record numbers.
	// Default: 100
	Step uint64

	// PageSize is the page size hint for the streaming listing.
	// Default: 3
	PageSize int32

	// Below is the exclusive bound of the delete query.
	// Default: 600
	Below uint64

	// Expected is the record count the final listing must report.
	// Default: 4
	Expected int

	// IDPrefix prefixes the loop index to form record ids.
	// Default: "unique_id"
	IDPrefix string

	// Now supplies insertion timestamps.
	// Default: time.Now
	Now func() time.Time
}

// DefaultOptions returns the options of the classic sample.
func DefaultOptions() Options {
	return Options{
		Count:    10,
		Step:     100,
		PageSize: 3,
		Below:    600,
		Expected: 4,
		IDPrefix: "unique_id",
		Now:      time.Now,
	}
}

// validate fills Step, PageSize, IDPrefix and Now from DefaultOptions when
// unset and clamps negative counts to zero. Count, Below and Expected keep a
// zero value since zero is meaningful for each; start from DefaultOptions to
// override single fields.
func (o *Options) validate() {
	d := DefaultOptions()
	if o.Count < 0 {
		o.Count = 0
	}
	if o.Step == 0 {
		o.Step = d.Step
	}
	if o.PageSize < 1 {
		o.PageSize = d.PageSize
	}
	if o.Expected < 0 {
		o.Expected = 0
	}
	if o.IDPrefix == "" {
		o.IDPrefix = d.IDPrefix
	}
	if o.Now == nil {
		o.Now = d.Now
	}
}
