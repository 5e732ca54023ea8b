// Package engine is the HTTP client of the structure prediction engine.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for engine client failures. All of them are worth
// retrying.
var (
	ErrEngineUnreachable = errors.New("engine unreachable")
	ErrEngineStatus      = errors.New("engine unexpected status")
	ErrEngineFailed      = errors.New("engine run failed")
)

// Client is the interface for driving prediction runs.
type Client interface {
	Run(ctx context.Context, uid uuid.UUID, seed int) (Response, error)
	Status(ctx context.Context, uid uuid.UUID, seed int) (Response, error)
	Cancel(ctx context.Context, uid uuid.UUID) error
	Ready(ctx context.Context) error
}

// Result points at the files the engine wrote to the shared volume.
type Result struct {
	PDBFilePath  string `json:"pdbFilePath"`
	JSONFilePath string `json:"jsonFilePath"`
}

// Response is the state of one run. Done is false while the engine is still
// working and the caller should poll Status.
type Response struct {
	Done   bool
	Result Result
}

// HTTPClient implements Client using the engine's HTTP API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a new engine HTTP client.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type runRequest struct {
	UID  string `json:"uid"`
	Seed int    `json:"seed"`
}

type errorBody struct {
	Detail string `json:"detail"`
}

// Run starts a prediction. A 200 carries the finished result, a 202 means
// the run was accepted and must be polled.
func (c *HTTPClient) Run(ctx context.Context, uid uuid.UUID, seed int) (Response, error) {
	body, err := json.Marshal(runRequest{UID: uid.String(), Seed: seed})
	if err != nil {
		return Response{}, fmt.Errorf("encoding run request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, classifyError(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return decodeResult(resp.Body)
	case http.StatusAccepted:
		return Response{}, nil
	default:
		return Response{}, fmt.Errorf("%w: run returned %d", ErrEngineStatus, resp.StatusCode)
	}
}

// Status polls a run started by Run.
func (c *HTTPClient) Status(ctx context.Context, uid uuid.UUID, seed int) (Response, error) {
	u := fmt.Sprintf("%s/status/%s?%s", c.baseURL, url.PathEscape(uid.String()),
		url.Values{"seed": {strconv.Itoa(seed)}}.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Response{}, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, classifyError(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return decodeResult(resp.Body)
	case http.StatusAccepted:
		return Response{}, nil
	case http.StatusInternalServerError:
		var eb errorBody
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&eb)
		return Response{}, fmt.Errorf("%w: %s", ErrEngineFailed, eb.Detail)
	default:
		return Response{}, fmt.Errorf("%w: status returned %d", ErrEngineStatus, resp.StatusCode)
	}
}

// Cancel asks the engine to abort every in-flight run of uid.
func (c *HTTPClient) Cancel(ctx context.Context, uid uuid.UUID) error {
	u := fmt.Sprintf("%s/cancel/%s", c.baseURL, url.PathEscape(uid.String()))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: cancel returned %d", ErrEngineStatus, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) Ready(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEngineUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: engine not ready (status %d)", ErrEngineUnreachable, resp.StatusCode)
	}
	return nil
}

func decodeResult(r io.Reader) (Response, error) {
	var res Result
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return Response{}, fmt.Errorf("%w: decoding engine response: %v", ErrEngineStatus, err)
	}
	if res.JSONFilePath == "" {
		return Response{}, fmt.Errorf("%w: response without jsonFilePath", ErrEngineStatus)
	}
	return Response{Done: true, Result: res}, nil
}

// classifyError maps transport-level errors to sentinel errors. A cancelled
// context is passed through so callers can tell shutdown from failure. A
// request that outlives the client timeout is an ordinary transport failure.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: request timed out: %v", ErrEngineUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrEngineUnreachable, err)
}

// IsTransient reports whether a failed engine call may succeed when retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrEngineUnreachable) ||
		errors.Is(err, ErrEngineStatus) ||
		errors.Is(err, ErrEngineFailed)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
