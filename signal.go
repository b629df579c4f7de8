package realtime

import (
	"context"
	"fmt"
	"net/url"

	"github.com/pippin-app/realtime-go/shared"
	"github.com/valyala/fasthttp"
)

// DefaultSignalingURL is the provider's HTTP signaling endpoint for the
// offer/answer exchange.
const DefaultSignalingURL = "https://api.openai.com/v1/realtime"

// Signaler performs the one-shot SDP offer/answer exchange.
type Signaler interface {
	Exchange(ctx context.Context, token, offerSDP string) (answerSDP string, err error)
}

// HTTPSignaler posts the raw offer to <base>?model=<model> with the
// ephemeral token as a bearer credential.
type HTTPSignaler struct {
	baseUrl *url.URL
	model   string
}

var _ Signaler = (*HTTPSignaler)(nil)

func NewHTTPSignaler(baseUrl, model string) (*HTTPSignaler, error) {
	if baseUrl == "" {
		baseUrl = DefaultSignalingURL
	}
	parsed, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("parsing signaling base URL: %w", err)
	}
	return &HTTPSignaler{baseUrl: parsed, model: model}, nil
}

func (s *HTTPSignaler) Exchange(ctx context.Context, token, offerSDP string) (string, error) {
	target := *s.baseUrl
	query := target.Query()
	query.Set("model", s.model)
	target.RawQuery = query.Encode()

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(target.String())
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.SetContentType("application/sdp")
	req.SetBodyString(offerSDP)

	errC := make(chan error, 1)
	go func() {
		errC <- fasthttp.Do(req, resp)
	}()
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", shared.ErrSignaling, ctx.Err())
	case err := <-errC:
		if err != nil {
			return "", fmt.Errorf("%w: performing HTTP request: %v", shared.ErrSignaling, err)
		}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return "", fmt.Errorf(
			"%w: unexpected status code: %d, body: %s",
			shared.ErrSignaling, resp.StatusCode(), resp.Body(),
		)
	}
	return string(resp.Body()), nil
}
