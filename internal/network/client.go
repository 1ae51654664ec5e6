// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package network talks to the network exposure function that grants QoS for
// a flow (3GPP AsSessionWithQoS).
package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/ports"
	xglog "github.com/ManuGH/qod/internal/log"
	"github.com/ManuGH/qod/internal/metrics"
	"github.com/ManuGH/qod/internal/platform/httpx"
	"github.com/ManuGH/qod/internal/resilience"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout          = 5 * time.Second
	defaultRateLimit        = 20
	defaultRateLimitBurst   = 40
	defaultBreakerThreshold = 5
	defaultBreakerReset     = 30 * time.Second
	maxErrorBody            = 512

	subscriptionsPath = "/3gpp-as-session-with-qos/v1/%s/subscriptions"
)

// Options configures the provider client.
type Options struct {
	BaseURL          string
	ScsAsID          string
	Timeout          time.Duration
	RateLimit        rate.Limit
	RateLimitBurst   int
	BreakerThreshold int
	BreakerReset     time.Duration
}

// HTTPClient implements ports.NetworkClient against an NEF REST endpoint.
type HTTPClient struct {
	base       string
	scsAsID    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.CircuitBreaker
	logger     zerolog.Logger
}

// NewHTTPClient creates a client with explicit options.
func NewHTTPClient(opts Options) (*HTTPClient, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid network base URL %q", opts.BaseURL)
	}
	nopts := normalizeOptions(opts)

	return &HTTPClient{
		base:       base,
		scsAsID:    nopts.ScsAsID,
		httpClient: httpx.NewClient("nef", nopts.Timeout),
		limiter:    rate.NewLimiter(nopts.RateLimit, nopts.RateLimitBurst),
		breaker: resilience.NewCircuitBreaker("nef", nopts.BreakerThreshold, nopts.BreakerReset,
			resilience.WithFailureFilter(isTransient)),
		logger: xglog.WithComponent("network"),
	}, nil
}

func normalizeOptions(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultRateLimit)
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	if opts.BreakerThreshold <= 0 {
		opts.BreakerThreshold = defaultBreakerThreshold
	}
	if opts.BreakerReset <= 0 {
		opts.BreakerReset = defaultBreakerReset
	}
	if strings.TrimSpace(opts.ScsAsID) == "" {
		opts.ScsAsID = "qod"
	}
	return opts
}

type flowInfo struct {
	FlowID           int      `json:"flowId"`
	FlowDescriptions []string `json:"flowDescriptions"`
}

type subscriptionRequest struct {
	NotificationDestination string     `json:"notificationDestination"`
	FlowInfo                []flowInfo `json:"flowInfo"`
	QosReference            string     `json:"qosReference"`
	UeIpv4Addr              string     `json:"ueIpv4Addr,omitempty"`
	UeIpv6Addr              string     `json:"ueIpv6Addr,omitempty"`
}

type subscriptionResponse struct {
	Self string `json:"self"`
}

// CreateSubscription opens the provider subscription and returns its id,
// taken from the resource URL the provider returns.
func (c *HTTPClient) CreateSubscription(ctx context.Context, req ports.FlowRequest) (string, error) {
	const op = "create"
	body, err := json.Marshal(subscriptionRequest{
		NotificationDestination: req.NotificationDestination,
		FlowInfo:                []flowInfo{{FlowID: 1, FlowDescriptions: req.FlowDescriptions}},
		QosReference:            req.QosReference,
		UeIpv4Addr:              req.DeviceIPv4,
		UeIpv6Addr:              req.DeviceIPv6,
	})
	if err != nil {
		return "", fmt.Errorf("encode subscription: %w", err)
	}

	var id string
	err = c.do(ctx, op, http.MethodPost, c.collectionURL(), body, func(resp *http.Response) error {
		if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
			return c.statusError(op, resp)
		}
		var payload subscriptionResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
			return &NetworkError{Sentinel: ErrBadResponse, Operation: op, Status: resp.StatusCode, Err: err}
		}
		id = subscriptionIDFrom(payload.Self)
		if id == "" {
			id = subscriptionIDFrom(resp.Header.Get("Location"))
		}
		if id == "" {
			return ports.ErrMissingSubscriptionID
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	c.logger.Debug().
		Str(xglog.FieldSessionID, req.SessionID).
		Str(xglog.FieldSubscriptionID, id).
		Msg("network subscription created")
	return id, nil
}

// DeleteSubscription removes the provider subscription. A provider 404 is
// returned as ports.ErrSubscriptionNotFound.
func (c *HTTPClient) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	const op = "delete"
	target := c.collectionURL() + "/" + url.PathEscape(subscriptionID)
	return c.do(ctx, op, http.MethodDelete, target, nil, func(resp *http.Response) error {
		switch resp.StatusCode {
		case http.StatusNoContent, http.StatusOK:
			return nil
		default:
			return c.statusError(op, resp)
		}
	})
}

func (c *HTTPClient) collectionURL() string {
	return c.base + fmt.Sprintf(subscriptionsPath, url.PathEscape(c.scsAsID))
}

// do sends one request through the breaker and limiter. Upstream calls are
// never retried here.
func (c *HTTPClient) do(ctx context.Context, op, method, target string, body []byte, handle func(*http.Response) error) error {
	err := c.breaker.Execute(func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return &NetworkError{Sentinel: ErrUnavailable, Operation: op, Err: err}
		}

		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, rdr)
		if err != nil {
			return fmt.Errorf("build %s request: %w", op, err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return transportError(op, err)
		}
		defer func() { _ = resp.Body.Close() }()
		return handle(resp)
	})

	if errors.Is(err, resilience.ErrCircuitOpen) {
		err = &NetworkError{Sentinel: ErrUnavailable, Operation: op, Err: err}
	}
	metrics.IncUpstreamRequest(op, outcome(err))
	return err
}

func (c *HTTPClient) statusError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	sentinel := classifyStatus(resp.StatusCode)
	if op != "delete" && errors.Is(sentinel, ports.ErrSubscriptionNotFound) {
		sentinel = ErrRejected
	}
	ne := &NetworkError{
		Sentinel:  sentinel,
		Operation: op,
		Status:    resp.StatusCode,
		Body:      strings.TrimSpace(string(raw)),
	}
	if !errors.Is(ne, ports.ErrSubscriptionNotFound) {
		c.logger.Warn().
			Str(xglog.FieldOperation, op).
			Int(xglog.FieldStatusCode, resp.StatusCode).
			Msg("network provider returned an error status")
	}
	return ne
}

func transportError(op string, err error) error {
	sentinel := ErrUnavailable
	var te interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &te) && te.Timeout()) {
		sentinel = ErrTimeout
	}
	return &NetworkError{Sentinel: sentinel, Operation: op, Err: err}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ports.ErrSubscriptionNotFound):
		return "not_found"
	case isTransient(err):
		return "unavailable"
	default:
		return "rejected"
	}
}

// subscriptionIDFrom returns the last path segment of a resource URL.
func subscriptionIDFrom(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if u, err := url.Parse(raw); err == nil {
		raw = u.Path
	}
	id := path.Base(strings.TrimRight(raw, "/"))
	if id == "." || id == "/" || id == "subscriptions" {
		return ""
	}
	return id
}

var _ ports.NetworkClient = (*HTTPClient)(nil)
