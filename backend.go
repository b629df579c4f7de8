package realtime

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/pippin-app/realtime-go/shared"
	"github.com/valyala/fasthttp"
)

// SessionCredential is the short-lived credential plus the session
// descriptor minted by the backend for one realtime session.
type SessionCredential struct {
	// Token is the ephemeral bearer value (client_secret.value) used for
	// the signaling exchange.
	Token string
	// Descriptor is the full session payload as returned by the backend.
	Descriptor map[string]any
}

// Backend is the client for the application backend: it mints realtime
// session credentials, executes function calls, and carries the thin auth
// glue around them. Safe for concurrent use.
type Backend struct {
	logger  shared.LoggerAdapter
	baseUrl *url.URL

	mu          sync.Mutex
	accessToken string
}

func NewBackend(logger shared.LoggerAdapter, baseUrl string) (*Backend, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	parsed, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	return &Backend{logger: logger, baseUrl: parsed}, nil
}

// SetAccessToken installs the bearer token used for authenticated calls.
func (b *Backend) SetAccessToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accessToken = token
}

func (b *Backend) token() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accessToken
}

// CreateRealtimeSession requests an ephemeral credential and session
// descriptor. The caller must not proceed to signaling on error.
func (b *Backend) CreateRealtimeSession(ctx context.Context, voice string) (*SessionCredential, error) {
	body := map[string]any{}
	if voice != "" {
		body["voice"] = voice
	}
	respBody, status, err := b.do(ctx, fasthttp.MethodPost, "/realtime/session", body, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCredential, err)
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("%w: unexpected status code %d: %s", shared.ErrCredential, status, respBody)
	}
	var descriptor map[string]any
	if err := sonic.Unmarshal(respBody, &descriptor); err != nil {
		return nil, fmt.Errorf("%w: decoding session descriptor: %v", shared.ErrCredential, err)
	}
	secret, _ := descriptor["client_secret"].(map[string]any)
	token, _ := secret["value"].(string)
	if token == "" {
		return nil, fmt.Errorf("%w: session descriptor has no client_secret.value", shared.ErrCredential)
	}
	return &SessionCredential{Token: token, Descriptor: descriptor}, nil
}

// ExecuteFunctionCall dispatches a detected function call and returns the
// structured result. Authenticated with the client's own bearer token,
// separate from the realtime credential.
func (b *Backend) ExecuteFunctionCall(ctx context.Context, name string, args map[string]any) (*FunctionCallResult, error) {
	body := map[string]any{"name": name, "arguments": args}
	respBody, status, err := b.do(ctx, fasthttp.MethodPost, "/realtime/function-call", body, b.token())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrExecution, err)
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("%w: unexpected status code %d: %s", shared.ErrExecution, status, respBody)
	}
	result := new(FunctionCallResult)
	if err := sonic.Unmarshal(respBody, result); err != nil {
		return nil, fmt.Errorf("%w: decoding function call result: %v", shared.ErrExecution, err)
	}
	return result, nil
}

// Login exchanges credentials for an access token and installs it on the
// client. The endpoint expects a form-encoded body.
func (b *Backend) Login(ctx context.Context, email, password string) error {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(b.baseUrl.JoinPath("/auth/login").String())
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.SetBodyString(form.Encode())

	if err := b.perform(ctx, req, resp); err != nil {
		return fmt.Errorf("performing login request: %w", err)
	}
	if resp.StatusCode() == fasthttp.StatusUnauthorized {
		return shared.ErrUnauthorized
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), resp.Body())
	}
	var token struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := sonic.Unmarshal(resp.Body(), &token); err != nil {
		return fmt.Errorf("decoding token response: %w", err)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("token response has no access_token")
	}
	b.SetAccessToken(token.AccessToken)
	return nil
}

// Register creates a new backend account.
func (b *Backend) Register(ctx context.Context, email, password, fullName string) error {
	body := map[string]any{
		"email":     email,
		"password":  password,
		"full_name": fullName,
	}
	respBody, status, err := b.do(ctx, fasthttp.MethodPost, "/auth/register", body, "")
	if err != nil {
		return fmt.Errorf("performing register request: %w", err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("unexpected status code: %d, body: %s", status, respBody)
	}
	return nil
}

// Health reports whether the backend and its database are reachable.
func (b *Backend) Health(ctx context.Context) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(b.baseUrl.JoinPath("/health").String())
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := b.perform(ctx, req, resp); err != nil {
		return fmt.Errorf("performing health request: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}
	return nil
}

func (b *Backend) do(ctx context.Context, method, path string, body map[string]any, bearer string) ([]byte, int, error) {
	encoded, err := sonic.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("marshaling request body: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(b.baseUrl.JoinPath(path).String())
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.SetBody(encoded)

	if err := b.perform(ctx, req, resp); err != nil {
		return nil, 0, err
	}
	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return out, resp.StatusCode(), nil
}

func (b *Backend) perform(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	errC := make(chan error, 1)
	go func() {
		errC <- fasthttp.Do(req, resp)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errC:
		if err != nil {
			return fmt.Errorf("performing HTTP request: %w", err)
		}
	}
	return nil
}
