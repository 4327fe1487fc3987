package classify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avito-tech/accountant-sla/internal/profile"
	"github.com/avito-tech/accountant-sla/store"
	"github.com/avito-tech/accountant-sla/store/db/sqlite"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	driver, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, driver.Migrate(context.Background()))
	t.Cleanup(func() { _ = driver.Close() })
	return store.New(driver, &profile.Profile{})
}

type fakeAI struct {
	result AIResult
	err    error
	calls  int
}

func (f *fakeAI) Classify(ctx context.Context, text string) (AIResult, error) {
	f.calls++
	return f.result, f.err
}

func defaultCascadeConfig() Config {
	return Config{AIConfidenceThreshold: 0.75, KeywordConfidenceThreshold: 0.5, CacheTTL: time.Hour}
}

func TestClassifyPrefersHighConfidenceAI(t *testing.T) {
	ai := &fakeAI{result: AIResult{Category: CategoryRequest, Confidence: 0.9, Reasoning: "clear request"}}
	svc := NewService(newTestStore(t), ai, DefaultCircuitBreaker(), defaultCascadeConfig())

	result, err := svc.Classify(context.Background(), "Подскажите пожалуйста по счету")
	require.NoError(t, err)
	require.Equal(t, CategoryRequest, result.Category)
	require.Equal(t, "ai", result.Model)
}

func TestClassifyFallsBackToKeywordWhenAIBelowThreshold(t *testing.T) {
	ai := &fakeAI{result: AIResult{Category: CategoryGratitude, Confidence: 0.4}}
	svc := NewService(newTestStore(t), ai, DefaultCircuitBreaker(), defaultCascadeConfig())

	result, err := svc.Classify(context.Background(), "Спасибо большое!")
	require.NoError(t, err)
	require.Equal(t, CategoryGratitude, result.Category)
}

func TestClassifyCachesResult(t *testing.T) {
	ai := &fakeAI{result: AIResult{Category: CategoryRequest, Confidence: 0.95}}
	svc := NewService(newTestStore(t), ai, DefaultCircuitBreaker(), defaultCascadeConfig())

	_, err := svc.Classify(context.Background(), "Нужна справка 2-НДФЛ")
	require.NoError(t, err)
	require.Equal(t, 1, ai.calls)

	result, err := svc.Classify(context.Background(), "Нужна справка 2-НДФЛ")
	require.NoError(t, err)
	require.Equal(t, "cache", result.Model)
	require.Equal(t, 1, ai.calls, "second call should be served from cache, not hit the AI classifier")
}

func TestClassifyFallsThroughToKeywordWhenBreakerOpen(t *testing.T) {
	ai := &fakeAI{err: errTimeout{}}
	breaker := NewCircuitBreaker(1, 2, time.Hour)
	svc := NewService(newTestStore(t), ai, breaker, defaultCascadeConfig())

	_, err := svc.Classify(context.Background(), "Спасибо")
	require.NoError(t, err)
	require.Equal(t, StateOpen, breaker.State())

	calls := ai.calls
	result, err := svc.Classify(context.Background(), "Еще один непохожий текст, спасибо")
	require.NoError(t, err)
	require.Equal(t, calls, ai.calls, "breaker should have refused the second AI call")
	require.Equal(t, CategoryGratitude, result.Category)
}

func TestClassifyNoPatternMatchPromotesToRequest(t *testing.T) {
	svc := NewService(newTestStore(t), nil, DefaultCircuitBreaker(), defaultCascadeConfig())
	result, err := svc.Classify(context.Background(), "qwertyuiop asdfgh")
	require.NoError(t, err)
	require.Equal(t, CategoryRequest, result.Category)
	require.InDelta(t, 0.5, result.Confidence, 0.0001)
}

type errTimeout struct{}

func (errTimeout) Error() string { return "request timeout exceeded" }
