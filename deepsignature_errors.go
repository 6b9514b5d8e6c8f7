// deepsignature/deepsignature_errors.go
// Contains exported error definitions for the deepsignature package.
package deepsignature

import "errors"

// =============================================================================
// Exported Errors
// =============================================================================

// Signature help never surfaces these to an editor. They exist so the stages
// can report why a request produced no result, for logs and metrics.
var (
	// ErrNoCallSite indicates no unbalanced open paren was found within the scan window.
	ErrNoCallSite = errors.New("no enclosing call site")

	// ErrNoPrecedingToken indicates no word precedes the call's open paren.
	ErrNoPrecedingToken = errors.New("no token before call site")

	// ErrNoDeclaration indicates the lookup found nothing for the token.
	ErrNoDeclaration = errors.New("no declaration found")

	// ErrDeclarationLookup indicates the declaration lookup itself failed.
	ErrDeclarationLookup = errors.New("declaration lookup failed")

	// ErrSelfDeclaration indicates the cursor is inside the function's own header.
	ErrSelfDeclaration = errors.New("call token is its own declaration")

	// ErrEmptyDeclaration indicates the declaration text was blank.
	ErrEmptyDeclaration = errors.New("empty declaration text")

	// ErrUnknownDeclarationFormat indicates the declaration came from an unsupported docs tool.
	ErrUnknownDeclarationFormat = errors.New("unknown declaration format")

	// ErrMalformedDeclaration indicates the declaration text does not match its format.
	ErrMalformedDeclaration = errors.New("malformed declaration text")

	// ErrConfig indicates non-fatal errors during config loading or processing.
	ErrConfig = errors.New("configuration error")

	// ErrInvalidConfig indicates a configuration value is invalid after validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCache indicates a general cache operation failure.
	ErrCache = errors.New("cache operation failed")

	// ErrCacheRead indicates failure reading from the cache.
	ErrCacheRead = errors.New("cache read failed")

	// ErrCacheWrite indicates failure writing to the cache.
	ErrCacheWrite = errors.New("cache write failed")

	// ErrCacheDecode indicates failure decoding data read from the cache.
	ErrCacheDecode = errors.New("cache decode failed")

	// ErrCacheEncode indicates failure encoding data for writing to the cache.
	ErrCacheEncode = errors.New("cache encode failed")

	// ErrPositionConversion indicates failure converting between position formats (e.g., LSP UTF-16 <-> runes).
	ErrPositionConversion = errors.New("position conversion failed")

	// ErrInvalidPositionInput indicates input position values (line/col) are invalid.
	ErrInvalidPositionInput = errors.New("invalid input position")

	// ErrPositionOutOfRange indicates a position is outside the valid bounds of the file or line.
	ErrPositionOutOfRange = errors.New("position out of range")

	// ErrInvalidUTF8 indicates an invalid UTF-8 sequence was encountered during processing.
	ErrInvalidUTF8 = errors.New("invalid utf-8 sequence")

	// ErrInvalidURI indicates a document URI is invalid or uses an unsupported scheme.
	ErrInvalidURI = errors.New("invalid document URI")
)
