// internal/ingest/fetch.go
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"

	commonerrors "screening-engine/internal/common/errors"
)

// HTTPDoer is the slice of the HTTP client the fetcher needs.
type HTTPDoer interface {
	DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Fetch downloads the attachment from the provider's media URL. Provider
// media endpoints require basic auth with the account credentials.
func Fetch(ctx context.Context, client HTTPDoer, mediaURL, accountSID, authToken string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, commonerrors.NewMediaFetchFailedError(mediaURL, err)
	}
	req.SetBasicAuth(accountSID, authToken)

	resp, err := client.DoWithContext(ctx, req)
	if err != nil {
		return nil, commonerrors.NewMediaFetchFailedError(mediaURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, commonerrors.NewMediaFetchFailedError(mediaURL, fmt.Errorf("status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, commonerrors.NewMediaFetchFailedError(mediaURL, err)
	}
	if len(data) == 0 {
		return nil, commonerrors.NewMediaFetchFailedError(mediaURL, fmt.Errorf("empty payload"))
	}

	return data, nil
}
