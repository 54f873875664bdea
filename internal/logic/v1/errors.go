// Package v1 provides session business logic for API version 1.
//
// Error Handling:
// This package defines sentinel errors for the outcomes handlers must tell
// apart. They are wrapped with context using fmt.Errorf("%w"). Errors coming
// from the session store are wrapped the same way, so errors.Is still sees
// domain.ErrNotImplemented and domain.ErrTransactionsUnsupported.
//
// Error Checking (in handlers):
//
//	switch {
//	case errors.Is(err, logicv1.ErrSessionNotFound):
//	    c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
//	case errors.Is(err, domain.ErrNotImplemented):
//	    c.JSON(http.StatusNotImplemented, gin.H{"error": "Not implemented"})
//	default:
//	    c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
//	}
package v1

import "errors"

var (
	// ErrSessionNotFound indicates the session id does not exist.
	// HTTP Status: 404 Not Found
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidSession indicates a request carried an empty id or a zero expiry.
	// HTTP Status: 400 Bad Request
	ErrInvalidSession = errors.New("invalid session")
)
