// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/ManuGH/qod/internal/domain/qos/ports"
	xglog "github.com/ManuGH/qod/internal/log"
	"github.com/ManuGH/qod/internal/metrics"
	"github.com/ManuGH/qod/internal/platform/httpx"
	platnet "github.com/ManuGH/qod/internal/platform/net"
	"github.com/rs/zerolog"
)

var (
	ErrSinkUnavailable = errors.New("notify: sink unreachable")
	ErrSinkRejected    = errors.New("notify: sink rejected event")
	ErrSinkBlocked     = errors.New("notify: sink blocked by policy")
)

// HTTPPublisher posts events to the sink URL stored on the session.
// Sessions without a sink are skipped.
type HTTPPublisher struct {
	source string
	client *http.Client
	now    func() time.Time
	logger zerolog.Logger
	policy *platnet.SinkPolicy
}

func NewHTTPPublisher(source string, timeout time.Duration) *HTTPPublisher {
	return &HTTPPublisher{
		source: source,
		client: httpx.NewClient("sink", timeout),
		now:    time.Now,
		logger: xglog.WithComponent("notify"),
	}
}

const maxSinkRedirects = 5

// WithSinkPolicy checks every sink against policy before delivery. Each
// redirect target is checked again.
func (p *HTTPPublisher) WithSinkPolicy(policy platnet.SinkPolicy) *HTTPPublisher {
	p.policy = &policy
	p.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxSinkRedirects {
			return fmt.Errorf("stopped after %d redirects", maxSinkRedirects)
		}
		return policy.Check(req.Context(), req.URL.String())
	}
	return p
}

func (p *HTTPPublisher) refuse(s *model.QosSession, target string, err error) error {
	metrics.IncPublish("http", "blocked")
	p.logger.Warn().
		Err(err).
		Str(xglog.FieldSessionID, s.SessionID).
		Str(xglog.FieldSink, platnet.SanitizeURL(target)).
		Msg("sink refused by delivery policy")
	return fmt.Errorf("%w: %v", ErrSinkBlocked, err)
}

func (p *HTTPPublisher) Publish(ctx context.Context, s *model.QosSession, reason model.StatusInfo) error {
	if s.Sink == "" {
		metrics.IncPublish("http", "skipped")
		return nil
	}
	if p.policy != nil {
		if err := p.policy.Check(ctx, s.Sink); err != nil {
			return p.refuse(s, s.Sink, err)
		}
	}
	now := p.now()
	body, err := json.Marshal(NewEvent(p.source, s, reason, now))
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Sink, bytes.NewReader(body))
	if err != nil {
		metrics.IncPublish("http", "error")
		return fmt.Errorf("build sink request: %w", err)
	}
	req.Header.Set("Content-Type", ContentType)
	if s.SinkCredential.Usable(now) {
		req.Header.Set("Authorization", "Bearer "+s.SinkCredential.AccessToken)
	} else if s.SinkCredential != nil {
		p.logger.Warn().
			Str(xglog.FieldSessionID, s.SessionID).
			Msg("sink credential no longer usable, delivering without authorization")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.Is(err, platnet.ErrSinkNotAllowed) && errors.As(err, &uerr) {
			return p.refuse(s, uerr.URL, err)
		}
		metrics.IncPublish("http", "unavailable")
		return fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.IncPublish("http", "rejected")
		return fmt.Errorf("%w: HTTP %d", ErrSinkRejected, resp.StatusCode)
	}
	metrics.IncPublish("http", "ok")
	return nil
}

var _ ports.EventPublisher = (*HTTPPublisher)(nil)
