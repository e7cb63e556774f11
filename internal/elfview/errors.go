package elfview

import "errors"

// Fatal error sentinels, matching spec.md section 7's "abort analysis,
// surface to the user" bucket. Checked with errors.Is at the CLI boundary.
var (
	// ErrNotELF is returned when the buffer isn't a well-formed ELF64 image
	// (including a parseable ELF32 image).
	ErrNotELF = errors.New("elfview: not an ELF64 image")
	// ErrUnsupportedObject is returned for an ELF64 image the core doesn't
	// analyze: one whose machine is not x86-64.
	ErrUnsupportedObject = errors.New("elfview: unsupported object format")
	// ErrSectionNotFound is returned by NamedSection when the requested
	// section is absent.
	ErrSectionNotFound = errors.New("elfview: section not found")
)
