package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/edusphere/exam-engine/internal/cache"
	"github.com/edusphere/exam-engine/internal/models"
	"github.com/edusphere/exam-engine/internal/repositories"
)

// QuestionPostgreSQL reads questions and choices from the question bank.
// Correctness flags stay inside the service layer and never reach handler
// responses.
type QuestionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (q *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}

func (q *QuestionPostgreSQL) GetByExam(ctx context.Context, tx *gorm.DB, examID string) ([]*models.Question, error) {
	db := q.getDB(tx)
	cacheKey := fmt.Sprintf("exam:%s:all", examID)
	var questions []*models.Question

	err := q.cacheManager.Question.CacheOrExecute(ctx, cacheKey, &questions, cache.QuestionCacheConfig.TTL, func() (interface{}, error) {
		var dbQuestions []*models.Question
		if err := db.WithContext(ctx).
			Where("exam_id = ?", examID).
			Preload("Choices", func(db *gorm.DB) *gorm.DB {
				return db.Order("choices.position ASC")
			}).
			Order("position ASC").
			Find(&dbQuestions).Error; err != nil {
			return nil, err
		}
		return dbQuestions, nil
	})
	if err != nil {
		return nil, err
	}

	return questions, nil
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Question, error) {
	db := q.getDB(tx)
	cacheKey := fmt.Sprintf("id:%s", id)
	var question models.Question

	err := q.cacheManager.Question.CacheOrExecute(ctx, cacheKey, &question, cache.QuestionCacheConfig.TTL, func() (interface{}, error) {
		var dbQuestion models.Question
		if err := db.WithContext(ctx).
			Preload("Choices", func(db *gorm.DB) *gorm.DB {
				return db.Order("choices.position ASC")
			}).
			Where("id = ?", id).
			First(&dbQuestion).Error; err != nil {
			return nil, err
		}
		return &dbQuestion, nil
	})
	if err != nil {
		return nil, err
	}

	return &question, nil
}
