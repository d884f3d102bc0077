package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/calcbridge-backend/internal/pkg/httpx"
	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
)

const (
	pathListing = "/data/listing"
	pathCreate  = "/data/create"
	pathDelete  = "/data/delete"

	// KeySeparator joins item keys in a listing request.
	KeySeparator = ":"

	maxBodyBytes = 8 << 20
)

type Config struct {
	BaseURL    string        `env:"UPSTREAM_BASE_URL" envDefault:"http://localhost:7070"`
	Secret     string        `env:"UPSTREAM_SECRET"`
	Timeout    time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"30s"`
	MaxRetries int           `env:"UPSTREAM_MAX_RETRIES" envDefault:"2"`
	RetryBase  time.Duration `env:"UPSTREAM_RETRY_BASE" envDefault:"200ms"`
}

// Item is one upstream data record; "uuid" is its key.
type Item = map[string]any

type Client interface {
	Listing(ctx context.Context, keys []string) ([]Item, error)
	Create(ctx context.Context, content string) (Item, error)
	Delete(ctx context.Context, key string) error
}

type client struct {
	log  *logger.Logger
	cfg  Config
	base *url.URL
	http *http.Client
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if raw == "" {
		return nil, ErrNotConfigured
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("upstream: parse base url: %w", err)
	}
	if _, err := loadSchemas(); err != nil {
		return nil, fmt.Errorf("upstream: load schemas: %w", err)
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &client{
		log:  log.With("client", "UpstreamClient"),
		cfg:  cfg,
		base: base,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Listing fetches the current value of every key. It is idempotent and retried
// on transient failures.
func (c *client) Listing(ctx context.Context, keys []string) ([]Item, error) {
	form := url.Values{}
	form.Set("uuid", strings.Join(keys, KeySeparator))

	var out []Item
	err := c.withRetry(ctx, "listing", func(ctx context.Context) error {
		body, status, err := c.post(ctx, pathListing, form)
		if err != nil {
			return err
		}
		sch, _ := loadSchemas()
		doc, err := c.decode(sch.listing, status, body)
		if err != nil {
			return err
		}
		items, ok := doc.([]any)
		if !ok {
			return fmt.Errorf("%w: expected array", ErrMalformedResponse)
		}
		out = make([]Item, 0, len(items))
		if err := remarshal(items, &out); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Create is not retried: a duplicate submit could create two records.
func (c *client) Create(ctx context.Context, content string) (Item, error) {
	form := url.Values{}
	form.Set("content", content)

	ctx, span := otel.Tracer("calcbridge/upstream").Start(ctx, "upstream.create")
	defer span.End()

	body, status, err := c.post(ctx, pathCreate, form)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	sch, _ := loadSchemas()
	doc, err := c.decode(sch.create, status, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	var item Item
	if err := remarshal(doc, &item); err != nil {
		return nil, err
	}
	return item, nil
}

func (c *client) Delete(ctx context.Context, key string) error {
	form := url.Values{}
	form.Set("uuid", key)
	return c.withRetry(ctx, "delete", func(ctx context.Context) error {
		body, status, err := c.post(ctx, pathDelete, form)
		if err != nil {
			return err
		}
		if status/100 != 2 {
			return c.statusError(status, body)
		}
		var doc map[string]any
		if len(strings.TrimSpace(string(body))) > 0 && json.Unmarshal(body, &doc) == nil {
			if _, has := doc["error"]; has {
				return errorFromDoc(status, doc)
			}
		}
		return nil
	})
}

func (c *client) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := otel.Tracer("calcbridge/upstream").Start(ctx, "upstream."+op)
	defer span.End()

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			span.SetAttributes(attribute.Int("upstream.attempts", attempt))
			return nil
		}
		if attempt > c.cfg.MaxRetries || !httpx.IsRetryableError(err) {
			break
		}
		wait := httpx.Backoff(attempt, c.cfg.RetryBase, 5*time.Second)
		c.log.Warn("Upstream call failed; retrying", "op", op, "attempt", attempt, "wait_ms", wait.Milliseconds(), "error", err)
		if sleepErr := httpx.Sleep(ctx, wait); sleepErr != nil {
			err = sleepErr
			break
		}
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (c *client) post(ctx context.Context, path string, form url.Values) ([]byte, int, error) {
	if c.cfg.Secret != "" {
		form.Set("secret", c.cfg.Secret)
	}
	endpoint := c.base.JoinPath(path).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("upstream %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("upstream %s: read body: %w", path, err)
	}
	return body, resp.StatusCode, nil
}

func (c *client) decode(sch *jsonschema.Schema, status int, body []byte) (any, error) {
	if status/100 != 2 {
		return nil, c.statusError(status, body)
	}
	doc, err := decodeValidated(sch, body)
	if err != nil {
		return nil, err
	}
	if m, ok := doc.(map[string]any); ok {
		if _, has := m["error"]; has {
			return nil, errorFromDoc(0, m)
		}
	}
	return doc, nil
}

func (c *client) statusError(status int, body []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err == nil {
		if _, has := doc["error"]; has {
			return errorFromDoc(status, doc)
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 256 {
		msg = msg[:256]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Status: status, Message: msg}
}

func remarshal(in any, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// IsUpstreamError reports whether err came from the upstream service itself
// rather than from transport.
func IsUpstreamError(err error) bool {
	var ue *Error
	return errors.As(err, &ue)
}
