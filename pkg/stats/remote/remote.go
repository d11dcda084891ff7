// Package remote runs statistics on a peer service over HTTP.
package remote

import (
	"context"

	"github.com/rhuss/qrgate/pkg/api"
	"github.com/rhuss/qrgate/pkg/auth"
	"github.com/rhuss/qrgate/pkg/httpclient"
	"github.com/rhuss/qrgate/pkg/matrix"
	"github.com/rhuss/qrgate/pkg/stats"
)

// OperationsPath is the peer route that computes statistics.
const OperationsPath = "/matrix/operations"

// Client is a stats.Analyzer backed by POST {base}/matrix/operations. The
// bearer token is taken from the context (auth.ContextWithToken).
type Client struct {
	client *httpclient.Client
}

var _ stats.Analyzer = (*Client)(nil)

// New creates a Client for the statistics service at baseURL.
func New(baseURL string, opts httpclient.Options) *Client {
	return &Client{client: httpclient.New("statistics", baseURL, opts)}
}

// Analyze posts {q, r} and decodes the peer's statistics. Failures are
// *api.DownstreamError.
func (c *Client) Analyze(ctx context.Context, q, r matrix.Matrix) (*stats.Statistics, error) {
	var out stats.Statistics
	req := api.OperationsRequest{Q: q, R: r}
	if err := c.client.PostJSON(ctx, OperationsPath, auth.TokenFromContext(ctx), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
