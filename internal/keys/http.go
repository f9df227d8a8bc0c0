package keys

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/udisondev/pagelock/internal/constants"
)

// fetchBody performs one bounded GET and returns the body of a 200 response.
func fetchBody(ctx context.Context, client *http.Client, rawURL, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrKeyResolution, err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyResolution, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", ErrKeyResolution, req.URL.Redacted(), resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxKeyResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrKeyResolution, err)
	}
	if len(body) > constants.MaxKeyResponseBytes {
		return nil, fmt.Errorf("%w: %s body over %d bytes", ErrKeyResolution, req.URL.Redacted(), constants.MaxKeyResponseBytes)
	}
	return body, nil
}
