// Package sequence is the upstream ledger client. It speaks a GraphQL-over-
// HTTP dialect: one POST per operation, bearer credential on every request,
// application-level errors carried inside the response body.
package sequence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"fundgate/internal/safeguard/ports"
	id "fundgate/pkg/domain"
	"fundgate/pkg/platform/circuit"
)

const createPaymentMutation = `
mutation CreatePayment($id: ID!, $source: PaymentAccountInput!, $destination: PaymentAccountInput!, $amount: Int!, $achDescription: String) {
  forKYC(id: $id) {
    createPayment(fields: {amount: $amount, source: $source, destination: $destination, achDescription: $achDescription}) {
      ok { payment { id status } }
      error { message }
    }
  }
}`

type Client struct {
	baseURL    string
	profileID  string
	auth       ports.Authenticator
	httpClient *http.Client
	breaker    *circuit.Breaker
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) { cl.breaker = b }
}

// New builds an executor against baseURL. profileID scopes payment mutations
// to the upstream account profile and is required by the API even when the
// credential already identifies the caller.
func New(baseURL, profileID string, auth ports.Authenticator, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if auth == nil {
		return nil, fmt.Errorf("authenticator is required")
	}

	cl := &Client{
		baseURL:    baseURL,
		profileID:  profileID,
		auth:       auth,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breaker:    circuit.New("sequence"),
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl, nil
}

type graphqlRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

type createPaymentData struct {
	ForKYC struct {
		CreatePayment struct {
			OK *struct {
				Payment struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"payment"`
			} `json:"ok"`
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		} `json:"createPayment"`
	} `json:"forKYC"`
}

// Execute submits a payment mutation. The outcome is final from the gate's
// perspective: any error here means no completion entry and no quota charge.
func (c *Client) Execute(ctx context.Context, req ports.ExecuteRequest) (ports.ExecuteResult, error) {
	if !c.breaker.Allow() {
		return ports.ExecuteResult{}, fmt.Errorf("upstream circuit open")
	}

	variables := map[string]any{
		"id":             c.profileID,
		"source":         map[string]any{"id": req.Source, "type": "POD"},
		"destination":    map[string]any{"id": req.Destination, "type": "POD"},
		"amount":         req.AmountCents,
		"achDescription": req.Note,
	}

	var data createPaymentData
	if err := c.execute(ctx, graphqlRequest{
		Query:         createPaymentMutation,
		Variables:     variables,
		OperationName: "CreatePayment",
	}, &data); err != nil {
		c.recordFailure(err)
		return ports.ExecuteResult{}, err
	}

	payment := data.ForKYC.CreatePayment
	if payment.Error != nil {
		// Application-level rejection, not a transport fault. The upstream
		// answered, so the breaker counts it as a success.
		c.breaker.RecordSuccess()
		return ports.ExecuteResult{}, fmt.Errorf("payment rejected upstream: %s", payment.Error.Message)
	}
	if payment.OK == nil {
		c.recordFailure(fmt.Errorf("malformed response"))
		return ports.ExecuteResult{}, fmt.Errorf("upstream returned neither ok nor error")
	}

	c.breaker.RecordSuccess()

	transferID := payment.OK.Payment.ID
	if transferID == "" {
		transferID = uuid.NewString()
	}
	return ports.ExecuteResult{
		TransferID: id.TransferID(transferID),
		Status:     payment.OK.Payment.Status,
	}, nil
}

func (c *Client) execute(ctx context.Context, gql graphqlRequest, out any) error {
	credential, err := c.auth.CurrentCredential(ctx)
	if err != nil {
		return fmt.Errorf("acquire credential: %w", err)
	}

	body, err := json.Marshal(gql)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/graphql-response+json, application/json")
	httpReq.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post %s: %w", gql.OperationName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upstream status %d: %s", resp.StatusCode, snippet)
	}

	var envelope graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	return json.Unmarshal(envelope.Data, out)
}

func (c *Client) recordFailure(err error) {
	_, change := c.breaker.RecordFailure()
	if change.Opened && c.logger != nil {
		c.logger.Warn("upstream circuit opened", "error", err)
	}
}
