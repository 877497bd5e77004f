package repositories

import "context"

// Repository aggregates all sub-repositories behind one handle so services
// take a single dependency and transactions can rebind every sub-repository
// at once.
type Repository interface {
	// Owned domain
	Submission() SubmissionRepository
	AnsweredQuestion() AnsweredQuestionRepository

	// External collaborators (read-only)
	Exam() ExamRepository
	Question() QuestionRepository
	User() UserRepository

	// WithTransaction runs fn against a repository whose sub-repositories
	// are bound to one database transaction. The transaction commits when
	// fn returns nil and rolls back otherwise.
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryManager manages repository lifecycle.
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
