package safety

import (
	"context"
	"log/slog"
	"time"

	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/observability"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
)

const (
	ReasonUnsafe     = "Explicit or inappropriate content detected."
	ReasonUnverified = "Could not verify content safety"
	ReasonNoMedia    = "media_url is required for image posts"
)

// Verdict is the gate's decision. Status is the HTTP status a caller should
// answer with when it surfaces the verdict directly.
type Verdict struct {
	Safe    bool   `json:"safe"`
	Reason  string `json:"reason,omitempty"`
	Details string `json:"details,omitempty"`
	Status  int    `json:"-"`
}

// Gate applies the classifier to image posts and fails closed on any
// classifier problem.
type Gate struct {
	classifier Classifier
	timeout    time.Duration
}

func NewGate(classifier Classifier, timeout time.Duration) *Gate {
	return &Gate{classifier: classifier, timeout: timeout}
}

// Check classifies image media. Other post types are not classified.
func (g *Gate) Check(ctx context.Context, mediaURL string, postType models.PostType) Verdict {
	if postType != models.PostTypeImage {
		observability.SafetyVerdicts.WithLabelValues("skipped").Inc()
		return Verdict{Safe: true, Status: fiber.StatusOK}
	}
	if mediaURL == "" {
		observability.SafetyVerdicts.WithLabelValues("invalid").Inc()
		return Verdict{Reason: ReasonNoMedia, Status: fiber.StatusBadRequest}
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	ctx, span := observability.StartSpan(ctx, "safety.classify", observability.AttrMediaURL.String(mediaURL))
	start := time.Now()
	annotation, err := g.classifier.ClassifyImage(ctx, mediaURL)
	observability.ClassifierLatency.Observe(time.Since(start).Seconds())
	if err == nil && annotation.Unsafe() {
		span.SetAttributes(observability.AttrSafetyReason.String(string(ReasonUnsafe)))
	}
	observability.EndSpan(span, err)

	if err != nil {
		observability.SafetyVerdicts.WithLabelValues("error").Inc()
		observability.Logger.ErrorContext(ctx, "content safety check failed",
			slog.String("media_url", mediaURL),
			slog.String("error", err.Error()))
		sentry.CaptureException(err)
		return Verdict{Reason: ReasonUnverified, Details: err.Error(), Status: fiber.StatusInternalServerError}
	}

	if annotation.Unsafe() {
		observability.SafetyVerdicts.WithLabelValues("unsafe").Inc()
		observability.Logger.InfoContext(ctx, "content rejected",
			slog.String("media_url", mediaURL),
			slog.String("adult", annotation.Adult.String()),
			slog.String("violence", annotation.Violence.String()),
			slog.String("racy", annotation.Racy.String()))
		return Verdict{Reason: ReasonUnsafe, Status: fiber.StatusBadRequest}
	}

	observability.SafetyVerdicts.WithLabelValues("safe").Inc()
	return Verdict{Safe: true, Status: fiber.StatusOK}
}
