// Package httputil provides the small HTTP helpers shared by the webhook
// receiver and the API client: JSON response writers, bounded body reads and
// the request-id, recovery and chaining middleware.
package httputil
