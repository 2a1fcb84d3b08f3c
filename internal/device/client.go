package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeberg.org/mutker/axebench/internal/clock"
	"codeberg.org/mutker/axebench/internal/errors"
	"codeberg.org/mutker/axebench/internal/logger"
)

// API endpoint paths
const (
	apiPathInfo     = "/api/system/info"
	apiPathSystem   = "/api/system"
	apiPathRestart  = "/api/system/restart"
	maxErrorBody    = 512
	defaultTimeout  = 10 * time.Second
	defaultAttempts = 3
	defaultBackoff  = 5 * time.Second
)

type Config struct {
	Address      string
	Timeout      time.Duration
	InfoAttempts int
	RetryDelay   time.Duration
}

func DefaultConfig(address string) Config {
	return Config{
		Address:      address,
		Timeout:      defaultTimeout,
		InfoAttempts: defaultAttempts,
		RetryDelay:   defaultBackoff,
	}
}

// HTTPClient talks to the miner over its REST API
type HTTPClient struct {
	cfg     Config
	baseURL *url.URL
	http    *http.Client
	sleeper clock.Sleeper
	logger  logger.Logger
}

var _ Client = (*HTTPClient)(nil)

func New(cfg Config, sleeper clock.Sleeper, log logger.Logger) (*HTTPClient, error) {
	errFactory := errors.New()

	address := strings.TrimSpace(cfg.Address)
	if address == "" {
		return nil, errFactory.WithMessage(ErrInvalidURL, "miner address is empty")
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}

	baseURL, err := url.Parse(address)
	if err != nil || baseURL.Host == "" {
		return nil, errFactory.WithData(ErrInvalidURL, cfg.Address)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.InfoAttempts <= 0 {
		cfg.InfoAttempts = defaultAttempts
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = defaultBackoff
	}

	return &HTTPClient{
		cfg:     cfg,
		baseURL: baseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		sleeper: sleeper,
		logger:  log,
	}, nil
}

func (c *HTTPClient) Address() string {
	return c.cfg.Address
}

func (c *HTTPClient) Info(ctx context.Context) (*Info, error) {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.InfoAttempts; attempt++ {
		info, err := c.fetchInfo(ctx)
		if err == nil {
			return info, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			c.logger.Error().Err(err).Msg("Error fetching system info")
			return nil, err
		}

		c.logger.Error().
			Str("error_code", string(errors.CodeOf(err))).
			Int("attempt", attempt).
			Int("attempts", c.cfg.InfoAttempts).
			Msg("Transient failure while fetching system info")

		if attempt < c.cfg.InfoAttempts {
			if err := c.sleeper.Sleep(ctx, c.cfg.RetryDelay); err != nil {
				return nil, err
			}
		}
	}

	return nil, lastErr
}

func (c *HTTPClient) fetchInfo(ctx context.Context) (*Info, error) {
	body, err := c.do(ctx, http.MethodGet, apiPathInfo, nil)
	if err != nil {
		return nil, err
	}

	info := &Info{}
	if err := json.Unmarshal(body, info); err != nil {
		return nil, errors.New().Wrap(ErrRequestFailed, fmt.Errorf("decode system info: %w", err))
	}

	return info, nil
}

func (c *HTTPClient) ApplySettings(ctx context.Context, settings Settings) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	if _, err := c.do(ctx, http.MethodPatch, apiPathSystem, payload); err != nil {
		c.logger.Error().Err(err).Msg("Error setting system settings")
		return err
	}

	c.logger.Info().
		Int("core_voltage", settings.CoreVoltage).
		Int("frequency", settings.Frequency).
		Msg("System settings updated")

	return nil
}

func (c *HTTPClient) Restart(ctx context.Context) error {
	c.logger.Info().Msg("Restarting the miner...")

	if _, err := c.do(ctx, http.MethodPost, apiPathRestart, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error restarting the system")
		return err
	}

	c.logger.Warn().Msg("Miner restarted!")

	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	errFactory := errors.New()

	endpoint := c.baseURL.JoinPath(path)

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, errFactory.Wrap(ErrRequestFailed, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, errFactory.WithData(ErrRequestFailed, struct {
			Method string
			Path   string
			Status int
			Body   string
		}{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		})
	}

	return body, nil
}
