package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/RakeshKhadav/VC/internal/domain"
	pkgkafka "github.com/RakeshKhadav/VC/pkg/kafka"
	"github.com/RakeshKhadav/VC/pkg/logger"
)

// Kafka topic constants for review platform events.
const (
	TopicReviewCreated     = "vcreviews.review.created"
	TopicFirmRatingUpdated = "vcreviews.firm.rating_updated"
	TopicReviewViewed      = "vcreviews.review.viewed"
	TopicReviewViewDenied  = "vcreviews.review.view_denied"
	TopicUserProvisioned   = "vcreviews.user.provisioned"
	TopicUserPlanChanged   = "vcreviews.user.plan_changed"
)

// Aggregate type constants.
const (
	AggregateTypeReview    = "review"
	AggregateTypeFirm      = "firm"
	AggregateTypeUser      = "user"
	AggregateTypeViewQuota = "view_quota"
)

// SourceReviewService identifies events originating from this service.
const SourceReviewService = "vcreviews-api"

// ReviewCreatedData is the payload for a review.created event. It never
// carries the author or the review text.
type ReviewCreatedData struct {
	ReviewID  string         `json:"review_id"`
	FirmID    string         `json:"firm_id"`
	FirmSlug  string         `json:"firm_slug"`
	Ratings   domain.Ratings `json:"ratings"`
	CreatedAt time.Time      `json:"created_at"`
}

// FirmRatingUpdatedData is the payload for a firm.rating_updated event.
type FirmRatingUpdatedData struct {
	FirmID            string  `json:"firm_id"`
	Slug              string  `json:"slug"`
	AvgResponsiveness float64 `json:"avg_responsiveness"`
	AvgFairness       float64 `json:"avg_fairness"`
	AvgSupport        float64 `json:"avg_support"`
	AvgRating         float64 `json:"avg_rating"`
	TotalReviews      int     `json:"total_reviews"`
}

// ReviewViewData is the payload for review.viewed and review.view_denied.
type ReviewViewData struct {
	UserID         string    `json:"user_id"`
	ReviewID       string    `json:"review_id"`
	Plan           string    `json:"plan"`
	ViewsThisMonth int       `json:"views_this_month"`
	PeriodStart    time.Time `json:"period_start"`
	At             time.Time `json:"at"`
}

// UserData is the payload for user.provisioned and user.plan_changed.
type UserData struct {
	UserID       string `json:"user_id"`
	ExternalID   string `json:"external_id"`
	Plan         string `json:"plan"`
	PreviousPlan string `json:"previous_plan,omitempty"`
}

// Publisher writes an event to a topic. *pkgkafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes review platform events.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// NewNopProducer returns a producer that drops every event, for runs
// without a broker.
func NewNopProducer(logger *slog.Logger) *Producer {
	return NewProducer(nopPublisher{}, logger)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, *pkgkafka.Event) error { return nil }

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	evt, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceReviewService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	evt.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

// PublishReviewCreated publishes a review.created event.
func (p *Producer) PublishReviewCreated(ctx context.Context, review *domain.Review, firm *domain.Firm) error {
	return p.publish(ctx, TopicReviewCreated, review.ID, AggregateTypeReview, ReviewCreatedData{
		ReviewID:  review.ID,
		FirmID:    firm.ID,
		FirmSlug:  firm.Slug,
		Ratings:   review.Ratings,
		CreatedAt: review.CreatedAt,
	})
}

// PublishFirmRatingUpdated publishes a firm.rating_updated event.
func (p *Producer) PublishFirmRatingUpdated(ctx context.Context, firm *domain.Firm) error {
	return p.publish(ctx, TopicFirmRatingUpdated, firm.ID, AggregateTypeFirm, FirmRatingUpdatedData{
		FirmID:            firm.ID,
		Slug:              firm.Slug,
		AvgResponsiveness: firm.AvgResponsiveness,
		AvgFairness:       firm.AvgFairness,
		AvgSupport:        firm.AvgSupport,
		AvgRating:         firm.AvgRating(),
		TotalReviews:      firm.TotalReviews,
	})
}

// PublishReviewViewed publishes a review.viewed event for an admitted read.
func (p *Producer) PublishReviewViewed(ctx context.Context, user *domain.User, reviewID string, status domain.QuotaStatus, at time.Time) error {
	return p.publish(ctx, TopicReviewViewed, user.ID, AggregateTypeViewQuota, viewData(user, reviewID, status, at))
}

// PublishReviewViewDenied publishes a review.view_denied event.
func (p *Producer) PublishReviewViewDenied(ctx context.Context, user *domain.User, reviewID string, status domain.QuotaStatus, at time.Time) error {
	return p.publish(ctx, TopicReviewViewDenied, user.ID, AggregateTypeViewQuota, viewData(user, reviewID, status, at))
}

func viewData(user *domain.User, reviewID string, status domain.QuotaStatus, at time.Time) ReviewViewData {
	return ReviewViewData{
		UserID:         user.ID,
		ReviewID:       reviewID,
		Plan:           string(user.Plan),
		ViewsThisMonth: status.ViewsThisMonth,
		PeriodStart:    status.PeriodStart,
		At:             at,
	}
}

// PublishUserProvisioned publishes a user.provisioned event.
func (p *Producer) PublishUserProvisioned(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicUserProvisioned, user.ID, AggregateTypeUser, UserData{
		UserID:     user.ID,
		ExternalID: user.ExternalID,
		Plan:       string(user.Plan),
	})
}

// PublishUserPlanChanged publishes a user.plan_changed event.
func (p *Producer) PublishUserPlanChanged(ctx context.Context, user *domain.User, previous domain.Plan) error {
	return p.publish(ctx, TopicUserPlanChanged, user.ID, AggregateTypeUser, UserData{
		UserID:       user.ID,
		ExternalID:   user.ExternalID,
		Plan:         string(user.Plan),
		PreviousPlan: string(previous),
	})
}
