package httputil

import (
	"fmt"
	"io"
	"net/http"
)

// ReadBody reads the whole request body. When maxBytes > 0 a larger body
// fails with *http.MaxBytesError.
func ReadBody(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	reader := io.Reader(r.Body)
	if maxBytes > 0 {
		reader = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return body, nil
}
