// Package errors renders HTTP failures as RFC 7807 Problem Details
package errors

import (
	"net/http"
)

// Problem type URIs
const (
	TypeNotFound         = "https://tradegen.dev/problems/not-found"
	TypeMethodNotAllowed = "https://tradegen.dev/problems/method-not-allowed"
)

// ContentType is the media type of a problem response
const ContentType = "application/problem+json"

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// Error implements the error interface
func (p *ProblemDetails) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

// NewNotFoundError creates a not found error problem
func NewNotFoundError(detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:     TypeNotFound,
		Title:    http.StatusText(http.StatusNotFound),
		Status:   http.StatusNotFound,
		Detail:   detail,
		Instance: instance,
	}
}

// NewMethodNotAllowedError creates a method not allowed error problem
func NewMethodNotAllowedError(detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:     TypeMethodNotAllowed,
		Title:    http.StatusText(http.StatusMethodNotAllowed),
		Status:   http.StatusMethodNotAllowed,
		Detail:   detail,
		Instance: instance,
	}
}
