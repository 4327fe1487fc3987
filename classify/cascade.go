// Package classify implements the classifier cascade: a persistent cache
// lookup, a circuit-breaker-guarded AI call, and a deterministic keyword
// fallback, in that order.
package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/avito-tech/accountant-sla/store"
)

// Result is the public contract returned by Classify.
type Result struct {
	Category   Category
	Confidence float64
	Model      string // "cache", "ai", "ai-low-confidence", or "keyword"
	Reasoning  string
}

// Config controls the threshold behavior of the cascade. Values normally
// come from store.GlobalSettings and may change at runtime.
type Config struct {
	AIConfidenceThreshold      float64
	KeywordConfidenceThreshold float64
	CacheTTL                   time.Duration
}

// Service runs the cascade described by the classifier contract: cache,
// then AI (if the breaker admits it), then keyword rules, with conflict
// resolution between the AI and keyword outcomes.
type Service struct {
	store   *store.Store
	ai      AIClassifier
	breaker *CircuitBreaker
	keyword *KeywordMatcher
	cfg     Config

	onAIError func(ErrorKind)
}

func NewService(st *store.Store, ai AIClassifier, breaker *CircuitBreaker, cfg Config) *Service {
	return &Service{
		store:   st,
		ai:      ai,
		breaker: breaker,
		keyword: NewDefaultKeywordMatcher(),
		cfg:     cfg,
	}
}

// OnAIError registers a callback invoked whenever an AI call fails, so
// callers can feed classifier-error metrics without this package knowing
// about Prometheus.
func (s *Service) OnAIError(fn func(ErrorKind)) {
	s.onAIError = fn
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(normalize(text)))
	return hex.EncodeToString(sum[:])
}

func (s *Service) Classify(ctx context.Context, text string) (Result, error) {
	hash := hashText(text)

	if entry, err := s.store.GetClassificationCache(ctx, hash); err != nil {
		slog.Warn("classification cache lookup failed", "error", err)
	} else if entry != nil && entry.ExpiresAt.After(time.Now()) {
		return Result{Category: Category(entry.Category), Confidence: entry.Confidence, Model: "cache"}, nil
	}

	result := s.classifyUncached(ctx, text)

	expiry := time.Now().Add(s.cfg.CacheTTL)
	if err := s.store.UpsertClassificationCache(ctx, &store.ClassificationCacheEntry{
		Hash: hash, Category: string(result.Category), Confidence: result.Confidence, Model: result.Model, ExpiresAt: expiry,
	}); err != nil {
		slog.Warn("failed to persist classification cache entry", "error", err)
	}

	return result, nil
}

func (s *Service) classifyUncached(ctx context.Context, text string) Result {
	keywordCategory, keywordConfidence, keywordReason := s.keyword.Match(text)
	keywordResult := Result{Category: keywordCategory, Confidence: keywordConfidence, Model: "keyword", Reasoning: keywordReason}

	var aiResult *AIResult
	if s.ai != nil && s.breaker.CanRequest() {
		res, err := s.ai.Classify(ctx, text)
		if err != nil {
			s.breaker.RecordFailure()
			if s.onAIError != nil {
				s.onAIError(ClassifyErrorKind(err))
			}
		} else {
			s.breaker.RecordSuccess()
			aiResult = &res
		}
	}

	if aiResult != nil && aiResult.Confidence >= s.cfg.AIConfidenceThreshold {
		return Result{Category: aiResult.Category, Confidence: aiResult.Confidence, Model: "ai", Reasoning: aiResult.Reasoning}
	}

	final := keywordResult
	if aiResult != nil {
		// AI returned a sub-threshold result; prefer whichever is more
		// confident, but keep the AI label as a low-confidence annotation
		// when it wins.
		if aiResult.Confidence > keywordResult.Confidence {
			final = Result{Category: aiResult.Category, Confidence: aiResult.Confidence, Model: "ai-low-confidence", Reasoning: aiResult.Reasoning}
		}
	}

	if final.Model == "keyword" && final.Confidence < s.cfg.KeywordConfidenceThreshold {
		final = Result{Category: CategoryRequest, Confidence: s.cfg.KeywordConfidenceThreshold, Model: final.Model, Reasoning: "promoted to REQUEST: below keyword confidence threshold"}
	}

	return final
}
