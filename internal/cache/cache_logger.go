package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateExamCache invalidates all exam-related caches
func InvalidateExamCache(ctx context.Context, cm *CacheManager, examID string) {
	SafeDelete(ctx, cm.Exam, fmt.Sprintf("id:%s", examID))
	SafeDelete(ctx, cm.Exists, fmt.Sprintf("exam:%s", examID))
	SafeInvalidatePattern(ctx, cm.Question, fmt.Sprintf("exam:%s:*", examID))
}

// InvalidateSubmissionCache drops the cached progress counts for one
// submission. Answer writes call this so the next poll recounts.
func InvalidateSubmissionCache(ctx context.Context, cm *CacheManager, submissionID string) {
	SafeDelete(ctx, cm.Progress, fmt.Sprintf("submission:%s", submissionID))
}
