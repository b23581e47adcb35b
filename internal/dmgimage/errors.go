package dmgimage

import "errors"

// Error kinds, per spec.md §7. Every failure surfaced across the package API
// wraps one of these with errors.Is-compatible sentinels so callers can branch
// on the taxonomy without string matching.
var (
	// ErrMalformedContainer covers a bad koly trailer: signature, header size,
	// impossible offsets, out-of-range XML length. Multi-segment images are
	// reported as ErrUnsupported.
	ErrMalformedContainer = errors.New("dmgimage: malformed container")

	// ErrMalformedDescriptor covers the XML/plist and mish block map: parse
	// failure, missing keys, bad base64, bad mish magic, chunk invariants.
	ErrMalformedDescriptor = errors.New("dmgimage: malformed block descriptor")

	// ErrOverflow covers any checked add/multiply on an offset or size that
	// overflowed uint64.
	ErrOverflow = errors.New("dmgimage: arithmetic overflow")

	// ErrUnsupported covers segment count > 1 and unrecognized chunk types.
	ErrUnsupported = errors.New("dmgimage: unsupported feature")

	// ErrBackingIO covers a Region.ReadAt failure or file-load failure.
	ErrBackingIO = errors.New("dmgimage: backing store read failed")

	// ErrDecompression covers a decompressed size mismatch.
	ErrDecompression = errors.New("dmgimage: decompression failed")

	// ErrPrecondition covers an out-of-range LBA passed to Read.
	ErrPrecondition = errors.New("dmgimage: precondition violated")
)
