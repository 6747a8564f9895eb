// Package platform contains the poster adapters for each supported
// social network. Adapters are thin pass-throughs over the platform
// HTTP APIs; scheduling, retries and persistence live elsewhere.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/teranos/socialia/errors"
	"github.com/teranos/socialia/internal/httpclient"
)

// maxErrorBody caps how much of an error response lands in the job's
// error field.
const maxErrorBody = 2048

// jsonRequest builds a request with a JSON body and the given headers.
func jsonRequest(ctx context.Context, method, url string, headers map[string]string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// readBody drains a response body, bounded.
func readBody(resp *http.Response) []byte {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil
	}
	return data
}

// doJSON sends a JSON request and returns the response status and body.
func doJSON(ctx context.Context, hc *httpclient.Client, method, url string, headers map[string]string, body interface{}) (int, []byte, error) {
	req, err := jsonRequest(ctx, method, url, headers, body)
	if err != nil {
		return 0, nil, err
	}

	resp, err := hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, readBody(resp), nil
}

// apiError formats a non-success platform response for the job record.
func apiError(platform string, status int, body []byte) error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return errors.Newf("%s API error %d: %s", platform, status, string(body))
}
