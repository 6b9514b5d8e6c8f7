// deepsignature/helpers_signature.go
// Parses docs tool declaration text into a display label and parameters.
package deepsignature

import (
	"fmt"
	"strings"
)

// DeclarationFormat is the layout of a declaration string. The set of formats
// is closed; only this package can implement it.
type DeclarationFormat interface {
	// cut returns the display label and the "(<params>) <ret>" substring.
	cut(text, name string) (label, signature string, err error)
	String() string
}

// nameFuncFormat reads "<name> func(<params>) <ret>" (godef).
type nameFuncFormat struct{}

// funcNameFormat reads "func <name>(<params>) <ret>" (godoc, gogetdoc).
type funcNameFormat struct{}

var (
	FormatNameFunc DeclarationFormat = nameFuncFormat{}
	FormatFuncName DeclarationFormat = funcNameFormat{}
)

const (
	funcMarker = " func" // Between name and signature in nameFuncFormat.
	funcPrefix = "func " // Leading keyword in funcNameFormat.
)

func (nameFuncFormat) String() string { return "name-func" }

func (nameFuncFormat) cut(text, _ string) (string, string, error) {
	nameEnd := strings.IndexByte(text, ' ')
	if nameEnd < 0 {
		return "", "", fmt.Errorf("%w: no space after name in %q", ErrMalformedDeclaration, text)
	}
	sigStart := nameEnd + len(funcMarker)
	if sigStart > len(text) {
		return "", "", fmt.Errorf("%w: truncated after name in %q", ErrMalformedDeclaration, text)
	}
	name := text[:nameEnd]
	signature := text[sigStart:]
	return name + signature, signature, nil
}

func (funcNameFormat) String() string { return "func-name" }

func (funcNameFormat) cut(text, name string) (string, string, error) {
	if len(text) < len(funcPrefix) {
		return "", "", fmt.Errorf("%w: shorter than %q prefix: %q", ErrMalformedDeclaration, funcPrefix, text)
	}
	label := text[len(funcPrefix):]
	// Drop a receiver or anything else printed before the name.
	if start := strings.Index(label, name+"("); start > 0 {
		label = label[start:]
	}
	signature := strings.TrimPrefix(label, name)
	return label, signature, nil
}

// FormatForTool maps the docs tool that produced a declaration to its format.
func FormatForTool(tool DocsTool) (DeclarationFormat, bool) {
	switch tool {
	case DocsToolGodef:
		return FormatNameFunc, true
	case DocsToolGodoc, DocsToolGogetdoc:
		return FormatFuncName, true
	}
	return nil, false
}

// ParseSignature converts raw declaration text into a ParsedSignature.
// Parameters carry no documentation of their own; raw.Documentation is
// attached to the signature.
func ParseSignature(raw RawDeclaration, splitter ParameterSplitter) (*ParsedSignature, error) {
	text := strings.TrimSpace(raw.Text)
	if text == "" {
		return nil, ErrEmptyDeclaration
	}
	if raw.Format == nil {
		return nil, ErrUnknownDeclarationFormat
	}
	if splitter == nil {
		splitter = scanSplitter{}
	}

	label, signature, err := raw.Format.cut(text, raw.FunctionName)
	if err != nil {
		return nil, err
	}
	split := splitter.Split(signature)

	params := make([]ParameterFragment, 0, len(split.Params))
	for _, p := range split.Params {
		params = append(params, ParameterFragment{Label: p})
	}
	return &ParsedSignature{
		Label:         label,
		Parameters:    params,
		ReturnType:    split.ReturnType,
		Documentation: raw.Documentation,
	}, nil
}
