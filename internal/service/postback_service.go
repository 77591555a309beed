package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"postback-relay/internal/delivery"
	"postback-relay/internal/keylock"
	"postback-relay/internal/metrics"
	"postback-relay/internal/model"
	"postback-relay/internal/normalize"
	"postback-relay/internal/ratelimit"
	"postback-relay/internal/render"
	"postback-relay/internal/repository"
	"postback-relay/internal/routing"
)

// PostbackService runs the ingestion pipeline for one postback.
type PostbackService interface {
	// Process never fails; every failure is folded into the outcome.
	Process(ctx context.Context, req model.PostbackRequest) model.Outcome
}

// Dependencies groups the collaborators of the postback pipeline.
// Analytics is optional.
type Dependencies struct {
	Profiles  repository.ProfileRepository
	Events    repository.EventRepository
	Router    routing.Router
	Renderer  render.Renderer
	Sender    delivery.Sender
	Limiter   ratelimit.Limiter
	Locker    keylock.Locker
	Analytics AnalyticsWorker
}

// postbackService wires the pipeline stages together.
type postbackService struct {
	Dependencies
	now func() time.Time
}

// NewPostbackService constructs a postbackService.
func NewPostbackService(deps Dependencies) PostbackService {
	return &postbackService{
		Dependencies: deps,
		now:          time.Now,
	}
}

func (s *postbackService) Process(ctx context.Context, req model.PostbackRequest) (out model.Outcome) {
	log := slog.With("request_id", req.RequestID, "kind", req.Kind)

	defer func() {
		if r := recover(); r != nil {
			log.Error("postback pipeline panicked", "panic", r)
			out = model.Outcome{Status: model.OutcomeInternalError}
		}
		metrics.PostbacksTotal.WithLabelValues(out.Status.String()).Inc()
	}()

	var err error
	out, err = s.process(ctx, log, req)
	if err != nil {
		log.Error("postback processing failed", "error", err)
		return model.Outcome{Status: model.OutcomeInternalError}
	}
	return out
}

func (s *postbackService) process(ctx context.Context, log *slog.Logger, req model.PostbackRequest) (model.Outcome, error) {
	if req.Secret == "" {
		log.Warn("postback rejected: missing secret")
		return model.Outcome{Status: model.OutcomeForbidden}, nil
	}

	profile, err := s.Profiles.GetEnabledBySecret(ctx, req.Secret)
	if err != nil {
		return model.Outcome{}, fmt.Errorf("lookup profile: %w", err)
	}
	if profile == nil || !profile.Enabled {
		log.Warn("postback rejected: unknown or disabled secret", "secret_prefix", secretPrefix(req.Secret))
		return model.Outcome{Status: model.OutcomeForbidden}, nil
	}

	pb := normalize.Parse(req.ContentType, req.Body)
	log = log.With("profile_id", profile.ID, "tx", pb.TxID, "status", pb.Status)

	unlock, err := s.Locker.Lock(ctx, keylock.Key(profile.ID, pb.TxID))
	if err != nil {
		return model.Outcome{}, fmt.Errorf("lock transaction: %w", err)
	}
	defer unlock()

	since := s.now().Add(-time.Duration(profile.DedupTTLSec) * time.Second)
	seen, err := s.Events.ExistsRecent(ctx, profile.ID, pb.TxID, since)
	if err != nil {
		return model.Outcome{}, fmt.Errorf("dedup check: %w", err)
	}
	if seen {
		log.Info("postback deduplicated")
		return model.Outcome{Status: model.OutcomeDuplicate}, nil
	}

	if !s.Limiter.Allow(profile.ID, profile.RateLimitRPS) {
		log.Warn("postback dropped: rate limit exceeded", "rate_limit_rps", profile.RateLimitRPS)
		return model.Outcome{Status: model.OutcomeRateLimited}, nil
	}

	dest, err := s.Router.Route(ctx, *profile, pb)
	if err != nil {
		return model.Outcome{}, fmt.Errorf("route: %w", err)
	}
	if dest.ChatID == 0 {
		log.Warn("postback not routed: no destination chat")
		return model.Outcome{Status: model.OutcomeNotRouted}, nil
	}

	text, err := s.Renderer.Render(pb)
	if err != nil {
		return model.Outcome{}, fmt.Errorf("render: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return model.Outcome{}, fmt.Errorf("aborted before delivery: %w", err)
	}

	started := time.Now()
	sendErr := s.Sender.Send(ctx, dest, text)
	metrics.DeliveryDuration.Observe(time.Since(started).Seconds())

	event := model.Event{
		ProfileID:     profile.ID,
		TransactionID: pb.TxID,
		Status:        pb.Status,
		CampaignID:    pb.CampaignID,
		Source:        pb.Source,
		Country:       pb.Country,
		Revenue:       pb.Revenue(),
		Processed:     sendErr == nil,
		SentToChatID:  &dest.ChatID,
		SentToTopicID: dest.TopicID,
		CreatedAt:     s.now(),
	}
	if sendErr != nil {
		msg := sendErr.Error()
		event.Error = &msg
	}

	// Once delivery was attempted the audit row is written regardless of
	// client cancellation.
	event.ID, err = s.Events.Insert(context.WithoutCancel(ctx), event)
	if err != nil {
		return model.Outcome{}, fmt.Errorf("insert audit event: %w", err)
	}

	if s.Analytics != nil {
		s.Analytics.Enqueue(event)
	}

	if sendErr != nil {
		log.Error("postback delivery failed", "chat_id", dest.ChatID, "event_id", event.ID, "error", sendErr)
		return model.Outcome{Status: model.OutcomeSendFailed, EventID: event.ID}, nil
	}

	log.Info("postback delivered", "chat_id", dest.ChatID, "event_id", event.ID)
	return model.Outcome{Status: model.OutcomeOK, EventID: event.ID}, nil
}

// secretPrefix keeps secrets out of logs while leaving them identifiable.
func secretPrefix(secret string) string {
	if len(secret) <= 8 {
		return secret[:len(secret)/2] + "..."
	}
	return secret[:8] + "..."
}
