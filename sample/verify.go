package sample

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacentio/docsample/store"
)

// ErrVerification is matched by every VerificationError.
var ErrVerification = errors.New("docsample: verification failed")

// VerificationError reports a final listing with the wrong number of records.
type VerificationError struct {
	Want int
	Got  int
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("docsample: expected %d documents after delete, found %d", e.Want, e.Got)
}

func (e *VerificationError) Unwrap() error {
	return ErrVerification
}

// Verify lists the collection once, untyped and unpaged beyond the first page,
// and checks the record count. It returns the count it saw.
func Verify(ctx context.Context, coll store.Collection, scope store.Scope, expected int) (int, error) {
	page, err := store.FirstPage(ctx, coll.NewListPager(store.ListOptions{Scope: scope}))
	if err != nil {
		return 0, fmt.Errorf("verify: %w", err)
	}
	docs, err := store.DecodeItems[map[string]any](page)
	if err != nil {
		return 0, fmt.Errorf("verify: %w", err)
	}
	if len(docs) != expected {
		return len(docs), &VerificationError{Want: expected, Got: len(docs)}
	}
	return len(docs), nil
}
