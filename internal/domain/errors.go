package domain

import "errors"

var (
	// Catalog errors
	ErrInvalidTarget         = errors.New("invalid catalog target")
	ErrUnknownCommodityClass = errors.New("unknown commodity class")

	// Observation errors
	ErrNoObservations = errors.New("no observations available")
	ErrItemNotFound   = errors.New("item not found")

	// Collaborator errors
	ErrUpstreamServer  = errors.New("upstream server error")
	ErrUpstreamStatus  = errors.New("unexpected upstream status")
	ErrCaptureFailed   = errors.New("screenshot capture failed")
	ErrVisionParse     = errors.New("unparseable vision response")
	ErrVisionNoPayload = errors.New("vision response missing structured payload")

	// Round errors
	ErrEmptyRound = errors.New("round yielded zero usable prices")

	// Database errors
	ErrDatabaseConnection = errors.New("database connection error")
	ErrDatabaseQuery      = errors.New("database query error")
)

// Truncate shortens diagnostic text for logs and stored failure notes.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
