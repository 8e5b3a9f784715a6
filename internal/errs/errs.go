// Package errs holds the error taxonomy shared by the overlay packages.
// Callers wrap these with fmt.Errorf("...: %w") and test with errors.Is.
package errs

import "errors"

var (
	// ErrConfiguration covers malformed descriptors, unknown output containers
	// and other setup problems that make a request unservable.
	ErrConfiguration = errors.New("configuration error")

	ErrUnsupportedReference = errors.New("unsupported spatial reference")
	ErrUnresolvableTemplate = errors.New("unresolvable url template")
	ErrUnknownTileMatrix    = errors.New("unknown tile matrix")
	ErrDocumentAssembly     = errors.New("document assembly failed")

	ErrTileOutOfRange = errors.New("tile out of range")
	ErrSourceNotFound = errors.New("map source not found")
)
