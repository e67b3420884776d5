package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/waabox/ontoloci/internal/domain"
	"github.com/waabox/ontoloci/internal/retry"
)

// Client validates test cases against a remote shape validation service.
type Client struct {
	baseURL string
	client  *http.Client
	policy  retry.Policy
	logger  *zap.Logger
}

// Ensure Client implements domain.Validator.
var _ domain.Validator = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(v *Client) { v.client = c }
}

// WithRetryPolicy sets the retry policy for validation requests.
func WithRetryPolicy(p retry.Policy) Option {
	return func(v *Client) { v.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Client) { v.logger = l }
}

// NewClient creates a validator for the service at baseURL.
// timeout bounds a single validation request.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type validateRequest struct {
	Data         string `json:"data"`
	DataFormat   string `json:"dataFormat"`
	Schema       string `json:"schema"`
	SchemaFormat string `json:"schemaFormat"`
	ShapeMap     string `json:"shapeMap"`
}

type validateResponse struct {
	ShapeMap []rawAssociation `json:"shapeMap"`
	Error    string           `json:"error"`
}

// Validate sends the ontology merged with the instance data, the schema and
// the query shape map, and returns the computed result shape map.
func (c *Client) Validate(ctx context.Context, tc domain.TestCase) (domain.ShapeMap, error) {
	endpoint := c.baseURL + "/validate"
	payload, err := json.Marshal(validateRequest{
		Data:         tc.Ontology + "\n" + tc.Instances,
		DataFormat:   "TURTLE",
		Schema:       tc.Schema,
		SchemaFormat: "ShExC",
		ShapeMap:     tc.ProducedShapeMap,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding validation request: %w", err)
	}

	var result domain.ShapeMap
	err = retry.Do(ctx, c.policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return domain.NewError(domain.ErrValidator, tc.Name,
				&domain.NetworkError{Op: "POST " + endpoint, Temporary: ctx.Err() == nil, Err: err})
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return domain.NewError(domain.ErrValidator, tc.Name,
				&domain.NetworkError{Op: "POST " + endpoint, Temporary: true, Err: err})
		}
		var decoded validateResponse
		decodeErr := json.Unmarshal(body, &decoded)

		if resp.StatusCode >= 400 {
			cause := &domain.NetworkError{
				Op:         "POST " + endpoint,
				StatusCode: resp.StatusCode,
				Temporary:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
			}
			if decodeErr == nil && decoded.Error != "" {
				return domain.NewError(domain.ErrValidator, tc.Name, fmt.Errorf("%s: %w", decoded.Error, cause))
			}
			return domain.NewError(domain.ErrValidator, tc.Name, cause)
		}
		if decodeErr != nil {
			return domain.NewError(domain.ErrValidator, tc.Name, fmt.Errorf("decoding validation response: %w", decodeErr))
		}
		sm, err := fromRaw(decoded.ShapeMap)
		if err != nil {
			return domain.NewError(domain.ErrValidator, tc.Name, err)
		}
		result = sm
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("test case validated", zap.String("test_case", tc.Name), zap.Int("associations", len(result)))
	return result, nil
}
