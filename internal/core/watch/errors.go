package watch

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingPackageName is returned for a package entry without a name.
	ErrMissingPackageName = errors.New("package name is required")

	// ErrLatestTagNotFound is returned when a registry document has no
	// "latest" dist-tag.
	ErrLatestTagNotFound = errors.New("could not find 'latest' tag for package")
)

// ItemError attributes a failed lookup to the input item and package that
// produced it. PackageName is empty when the item's parameters could not be
// read at all.
type ItemError struct {
	ItemIndex   int
	PackageName string
	Err         error
}

func (e *ItemError) Error() string {
	if e.PackageName == "" {
		return fmt.Sprintf("item %d: %v", e.ItemIndex, e.Err)
	}
	return fmt.Sprintf("item %d (%s): %v", e.ItemIndex, e.PackageName, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

func latestTagNotFound(name string) error {
	return fmt.Errorf("%w: %s", ErrLatestTagNotFound, name)
}
