package safety

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

	"github.com/blondeglamazon/message-board-sub000/internal/observability"

	"github.com/hashicorp/go-retryablehttp"
)

// Classifier scores an image reachable at a public URL.
type Classifier interface {
	ClassifyImage(ctx context.Context, imageURL string) (Annotation, error)
}

// VisionConfig configures the SafeSearch REST client.
type VisionConfig struct {
	Endpoint    string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
}

// VisionClassifier calls the Cloud Vision images:annotate endpoint with
// SAFE_SEARCH_DETECTION.
type VisionClassifier struct {
	client   *retryablehttp.Client
	endpoint string
	apiKey   string
}

var ErrMissingAPIKey = errors.New("vision api key is not configured")

// NewVisionClassifier builds a client that makes at most MaxAttempts calls,
// each bounded by Timeout.
func NewVisionClassifier(cfg VisionConfig) *VisionClassifier {
	client := retryablehttp.NewClient()
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	client.RetryMax = attempts - 1
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = observability.Logger

	return &VisionClassifier{
		client:   client,
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
	}
}

type annotateRequest struct {
	Requests []annotateImageRequest `json:"requests"`
}

type annotateImageRequest struct {
	Image    visionImage     `json:"image"`
	Features []visionFeature `json:"features"`
}

type visionImage struct {
	Source struct {
		ImageURI string `json:"imageUri"`
	} `json:"source"`
}

type visionFeature struct {
	Type string `json:"type"`
}

type visionStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type annotateResponse struct {
	Responses []struct {
		SafeSearch *struct {
			Adult    string `json:"adult"`
			Violence string `json:"violence"`
			Racy     string `json:"racy"`
		} `json:"safeSearchAnnotation"`
		Error *visionStatus `json:"error"`
	} `json:"responses"`
	Error *visionStatus `json:"error"`
}

func (v *VisionClassifier) ClassifyImage(ctx context.Context, imageURL string) (Annotation, error) {
	if v.apiKey == "" {
		return Annotation{}, ErrMissingAPIKey
	}

	payload := annotateRequest{Requests: []annotateImageRequest{{
		Features: []visionFeature{{Type: "SAFE_SEARCH_DETECTION"}},
	}}}
	payload.Requests[0].Image.Source.ImageURI = imageURL
	body, err := json.Marshal(payload)
	if err != nil {
		return Annotation{}, err
	}

	endpoint, err := url.Parse(v.endpoint)
	if err != nil {
		return Annotation{}, fmt.Errorf("invalid vision endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("key", v.apiKey)
	endpoint.RawQuery = q.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return Annotation{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return Annotation{}, fmt.Errorf("vision request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Annotation{}, fmt.Errorf("read vision response: %w", err)
	}

	var decoded annotateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Annotation{}, fmt.Errorf("decode vision response (status %d): %w", resp.StatusCode, err)
	}
	if decoded.Error != nil {
		return Annotation{}, fmt.Errorf("vision error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Annotation{}, fmt.Errorf("vision returned status %d", resp.StatusCode)
	}
	if len(decoded.Responses) == 0 {
		return Annotation{}, errors.New("vision response has no results")
	}
	first := decoded.Responses[0]
	if first.Error != nil {
		return Annotation{}, fmt.Errorf("vision error %d: %s", first.Error.Code, first.Error.Message)
	}
	if first.SafeSearch == nil {
		return Annotation{}, errors.New("vision response has no safeSearchAnnotation")
	}

	var a Annotation
	if a.Adult, err = ParseLikelihood(first.SafeSearch.Adult); err != nil {
		return Annotation{}, fmt.Errorf("adult: %w", err)
	}
	if a.Violence, err = ParseLikelihood(first.SafeSearch.Violence); err != nil {
		return Annotation{}, fmt.Errorf("violence: %w", err)
	}
	if a.Racy, err = ParseLikelihood(first.SafeSearch.Racy); err != nil {
		return Annotation{}, fmt.Errorf("racy: %w", err)
	}
	return a, nil
}
