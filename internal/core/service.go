package core

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/mikey/content-review/internal/metrics"
	sha256 "github.com/minio/sha256-simd"
	"go.uber.org/zap"
)

// Decision paths reported in logs and metrics
const (
	PathLocal  = "local"
	PathRemote = "remote"
	PathCache  = "cache"
)

// ReviewService composes the local keyword rules and the remote censor into
// one verdict pipeline
type ReviewService struct {
	matcher      RuleMatcher
	censor       RemoteCensor
	cache        CacheRepository
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
}

// NewReviewService creates a new review service
func NewReviewService(
	matcher RuleMatcher,
	censor RemoteCensor,
	cache CacheRepository,
	logger *zap.Logger,
	cacheEnabled bool,
	cacheTTL time.Duration,
) *ReviewService {
	return &ReviewService{
		matcher:      matcher,
		censor:       censor,
		cache:        cache,
		logger:       logger,
		cacheEnabled: cacheEnabled && cache != nil,
		cacheTTL:     cacheTTL,
	}
}

// ReviewText checks text against the local rules and falls back to the
// remote censor only when no rule matches
func (s *ReviewService) ReviewText(ctx context.Context, text string) (*Verdict, error) {
	if m := s.matcher.Check(text); m.Matched {
		s.logger.Info("Text rejected by local rule",
			zap.String("rule_id", m.Rule.ID),
			zap.String("keyword", m.Keyword),
			zap.String("action", "local_reject"))
		metrics.ReviewsTotal.WithLabelValues(string(SubjectText), PathLocal, string(StatusRejected)).Inc()
		return RuleViolation(m), nil
	}

	return s.reviewRemote(ctx, SubjectText, []byte(text), func(ctx context.Context) (*ProviderVerdict, error) {
		return s.censor.CensorText(ctx, text)
	})
}

// ReviewImage always delegates to the remote censor
func (s *ReviewService) ReviewImage(ctx context.Context, image []byte) (*Verdict, error) {
	return s.reviewRemote(ctx, SubjectImage, image, func(ctx context.Context) (*ProviderVerdict, error) {
		return s.censor.CensorImage(ctx, image)
	})
}

func (s *ReviewService) reviewRemote(
	ctx context.Context,
	kind SubjectKind,
	subject []byte,
	call func(context.Context) (*ProviderVerdict, error),
) (*Verdict, error) {
	key := SubjectDigest(kind, subject)

	if s.cacheEnabled {
		if entry, err := s.cache.Get(ctx, key); err == nil {
			s.logger.Debug("Cache hit for subject", zap.String("kind", string(kind)), zap.String("key", key))
			metrics.ReviewsTotal.WithLabelValues(string(kind), PathCache, string(entry.Status)).Inc()
			return &Verdict{Status: entry.Status, Reason: entry.Reason}, nil
		}
	}

	pv, err := call(ctx)
	if err != nil {
		s.logger.Error("Remote review failed",
			zap.String("kind", string(kind)),
			zap.String("failure", string(CensorErrorKindOf(err))),
			zap.Error(err))
		metrics.ReviewsTotal.WithLabelValues(string(kind), PathRemote, "failed").Inc()
		return nil, fmt.Errorf("%w: %w", ErrReviewFailed, err)
	}

	verdict := NormalizeProviderVerdict(pv)
	s.logger.Info("Remote review completed",
		zap.String("kind", string(kind)),
		zap.String("status", string(verdict.Status)),
		zap.Int("conclusion_type", pv.ConclusionType),
		zap.String("log_id", pv.LogID))
	metrics.ReviewsTotal.WithLabelValues(string(kind), PathRemote, string(verdict.Status)).Inc()

	if s.cacheEnabled {
		now := time.Now()
		entry := &CacheEntry{
			Key:       key,
			Status:    verdict.Status,
			Reason:    verdict.Reason,
			LastSeen:  now,
			ExpiresAt: now.Add(s.cacheTTL),
		}
		if err := s.cache.Set(ctx, entry); err != nil {
			s.logger.Error("Failed to update cache", zap.Error(err))
		}
	}

	return verdict, nil
}

// SubjectDigest derives the cache key for a subject
func SubjectDigest(kind SubjectKind, subject []byte) string {
	sum := sha256.Sum256(subject)
	return string(kind) + ":" + hex.EncodeToString(sum[:])
}
