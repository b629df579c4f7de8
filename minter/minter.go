// Package minter creates ephemeral realtime session credentials against the
// OpenAI REST API. It is the server-side collaborator behind the credential
// endpoint: the standard API key stays here and never reaches the session
// client.
package minter

import (
	"context"
	"fmt"
	"net/url"

	"github.com/bytedance/sonic"
	"github.com/openai/openai-go/v3/realtime"
	"github.com/pippin-app/realtime-go/shared"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.openai.com/v1"

type Minter struct {
	logger  shared.LoggerAdapter
	baseUrl *url.URL
	apiKey  string
	cfg     *realtime.RealtimeSessionCreateRequestParam
}

func New(logger shared.LoggerAdapter, apiKey, baseUrl string, cfg *realtime.RealtimeSessionCreateRequestParam) (*Minter, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("no session config provided")
	}
	if baseUrl == "" {
		baseUrl = defaultBaseURL
	}
	parsed, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	return &Minter{logger: logger, baseUrl: parsed, apiKey: apiKey, cfg: cfg}, nil
}

// CreateEphemeralSession mints one short-lived session and returns the full
// descriptor payload, including client_secret.value for the browser or
// session client. An optional voice preference overrides the configured one.
func (m *Minter) CreateEphemeralSession(ctx context.Context, voice string) (map[string]any, error) {
	cfgBytes, err := m.cfg.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshaling session config: %w", err)
	}
	var body map[string]any
	if err := sonic.Unmarshal(cfgBytes, &body); err != nil {
		return nil, fmt.Errorf("decoding session config: %w", err)
	}
	if voice != "" {
		body["voice"] = voice
	}
	encoded, err := sonic.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling session request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(m.baseUrl.JoinPath("/realtime/sessions").String())
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.SetContentType("application/json")
	req.SetBody(encoded)

	errC := make(chan error, 1)
	go func() {
		errC <- fasthttp.Do(req, resp)
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", shared.ErrCredential, ctx.Err())
	case err := <-errC:
		if err != nil {
			return nil, fmt.Errorf("%w: performing HTTP request: %v", shared.ErrCredential, err)
		}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, fmt.Errorf(
			"%w: unexpected status code: %d, body: %s",
			shared.ErrCredential, resp.StatusCode(), resp.Body(),
		)
	}
	var descriptor map[string]any
	if err := sonic.Unmarshal(resp.Body(), &descriptor); err != nil {
		return nil, fmt.Errorf("%w: decoding session descriptor: %v", shared.ErrCredential, err)
	}
	if id, ok := descriptor["id"].(string); ok {
		m.logger.Info("ephemeral session minted", zap.String("session_id", id))
	}
	return descriptor, nil
}
