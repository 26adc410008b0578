package importer

import (
	"errors"
	"fmt"

	"github.com/playperu/packimport/internal/archive"
	"github.com/playperu/packimport/internal/pricing"
)

// Code identifies an import failure or warning. The values are part of the
// API contract.
type Code string

const (
	CodeCorruptArchive      Code = "corruptArchive"
	CodeNoContentXML        Code = "noContentXML"
	CodeMalformedXML        Code = "malformedXML"
	CodePackExists          Code = "packExist"
	CodeMalformedPriceRange Code = "malformedPriceRange"
	CodeMediaMissing        Code = "mediaMissing"
	CodeLimitExceeded       Code = "limitExceeded"
	CodeImportFailed        Code = "importFailed"
)

// Error is returned by Import for failures that abort the whole import.
// Compare with errors.Is against the Err* values, which match on Code.
type Error struct {
	Code   Code
	Detail string
	Err    error
}

var (
	ErrCorruptArchive = &Error{Code: CodeCorruptArchive}
	ErrNoContentXML   = &Error{Code: CodeNoContentXML}
	ErrMalformedXML   = &Error{Code: CodeMalformedXML}
	ErrPackExists     = &Error{Code: CodePackExists}
	ErrLimitExceeded  = &Error{Code: CodeLimitExceeded}
	ErrImportFailed   = &Error{Code: CodeImportFailed}
)

func (e *Error) Error() string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func fail(code Code, err error, detail string) *Error {
	if detail == "" && err != nil {
		detail = err.Error()
	}
	return &Error{Code: code, Detail: detail, Err: err}
}

// Warning records an item-scoped problem. Skipped is set when the item was
// left out of its parent collection.
type Warning struct {
	Code    Code   `json:"code"`
	Path    string `json:"path"`
	Detail  string `json:"detail,omitempty"`
	Skipped bool   `json:"skipped"`
}

// errMediaMissing marks a reference whose target is not in the archive.
var errMediaMissing = errors.New("media missing from archive")

// itemCode classifies an error that dropped a single item.
func itemCode(err error) Code {
	switch {
	case errors.Is(err, pricing.ErrMalformedPriceRange):
		return CodeMalformedPriceRange
	case errors.Is(err, archive.ErrEntryTooLarge):
		return CodeLimitExceeded
	case errors.Is(err, archive.ErrCorrupt):
		return CodeCorruptArchive
	}
	return CodeImportFailed
}
