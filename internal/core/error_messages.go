package core

// # Error Codes Reference
//
// Codes are quoted by users to support staff. They are grouped as:
//
//	DB001-DB099   database constraint and connectivity failures
//	VAL001-VAL099 rejected input (ValidationError always maps to VAL000
//	              with its own message, the rest match on text)
//	NF001         missing item, category or user
//	FILE001-099   upload handling and spreadsheet parsing
//	IMP001-099    import batch level failures
//	AUTH001-099   authentication and authorization
//	RATE001       request throttling
//	ERR000        fallback, check the logs for the technical error
//
// Pattern matching is case-insensitive strings.Contains and the first
// match wins, so specific patterns precede general ones.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Database
	{"duplicate key", UserMessage{"A record with this value already exists", "Use a different name or update the existing record", "DB001"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Review your data for duplicate entries", "DB002"}},
	{"violates foreign key", UserMessage{"Referenced record does not exist", "Refresh and try again", "DB003"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},
	{"violates check constraint", UserMessage{"A value is outside the allowed range", "Price and stock must not be negative", "DB008"}},

	// Validation
	{"insufficient stock", UserMessage{"Not enough units in stock for this sale", "Reduce the quantity or restock the item first", "VAL007"}},
	{"invalid date", UserMessage{"Invalid date format detected", "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024", "VAL001"}},
	{"invalid number", UserMessage{"Invalid number format detected", "Remove thousands separators and use a plain decimal", "VAL002"}},
	{"is required", UserMessage{"Required field is empty", "Ensure all required columns have values", "VAL003"}},
	{"missing required column", UserMessage{"Required column is missing from the file", "Download the import template and compare the headers", "VAL004"}},

	// Files
	{"file too large", UserMessage{"File exceeds the maximum upload size", "Split the file into smaller sheets", "FILE001"}},
	{"invalid csv", UserMessage{"File is not a valid CSV", "Ensure the file is comma-separated with consistent columns", "FILE002"}},
	{"invalid xlsx", UserMessage{"File is not a readable Excel workbook", "Re-save the workbook as .xlsx and try again", "FILE003"}},
	{"no file provided", UserMessage{"No file was selected", "Please select a CSV or Excel file to import", "FILE004"}},
	{"empty file", UserMessage{"The uploaded file has no data rows", "Add at least one item below the header row", "FILE005"}},
	{"unsupported file type", UserMessage{"Only .csv and .xlsx files can be imported", "Export the sheet as CSV or Excel", "FILE006"}},
	{"request body too large", UserMessage{"Request body exceeds the maximum size", "Send fewer items per request", "FILE007"}},

	// Import
	{"no items to import", UserMessage{"No items were provided", "Send at least one item", "IMP001"}},
	{"too many imports", UserMessage{"System is busy processing other imports", "Please wait a moment and try again", "IMP002"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "IMP003"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try importing a smaller file", "IMP004"}},
	{"timeout", UserMessage{"Operation timed out", "Try again later", "DB006"}},

	// Auth
	{"invalid credentials", UserMessage{"Invalid email or password", "Check your credentials and try again", "AUTH001"}},
	{"not authorized", UserMessage{"You must be signed in to do that", "Sign in and try again", "AUTH002"}},
	{"token", UserMessage{"Your session is invalid or has expired", "Sign in again", "AUTH003"}},

	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts err to a user-facing message. Typed validation and
// not-found errors keep their own text; everything else is matched against
// the pattern table and falls back to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return UserMessage{Message: ve.Error(), Action: "Correct the highlighted value and try again", Code: "VAL000"}
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return UserMessage{Message: nf.Error(), Action: "Refresh the list and try again", Code: "NF001"}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders MapError as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
