package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/genflow-ai/genflow/types"
)

// Record is the write-side view of one finished run before persistence.
type Record struct {
	UserID          string
	Query           string
	Response        string
	Sources         []string
	Status          ExecutionStatus
	ErrorCode       string
	ErrorMessage    string
	FailedNodeID    string
	ExecutionTimeMS float64
}

// Stats aggregates execution history for the stats endpoint.
type Stats struct {
	TotalExecutions     int64   `json:"total_executions"`
	CompletedExecutions int64   `json:"completed_executions"`
	FailedExecutions    int64   `json:"failed_executions"`
	AvgExecutionTimeMS  float64 `json:"avg_execution_time_ms"`
}

// Store persists executions and chat messages. Writes are fire-and-forget:
// history must never delay or fail a run.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewStore migrates the schema and returns a store.
func NewStore(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if db == nil {
		return nil, types.NewError(types.ErrConfig, "history store requires a database")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := Migrate(db); err != nil {
		return nil, types.NewError(types.ErrInternalError, "migrate history schema").WithCause(err)
	}
	return &Store{
		db:     db,
		logger: logger.With(zap.String("component", "history")),
	}, nil
}

// Append persists a record asynchronously. Failures are logged, never
// surfaced to the caller.
func (s *Store) Append(rec Record) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.append(ctx, rec); err != nil {
			s.logger.Warn("failed to persist execution",
				zap.String("user_id", rec.UserID),
				zap.Error(err))
		}
	}()
}

// AppendSync persists a record and reports the outcome. Used by tests and by
// callers that need the generated id.
func (s *Store) AppendSync(ctx context.Context, rec Record) (string, error) {
	id := uuid.NewString()
	sources, err := json.Marshal(rec.Sources)
	if err != nil {
		return "", err
	}

	exec := Execution{
		ID:              id,
		UserID:          rec.UserID,
		Query:           rec.Query,
		Response:        rec.Response,
		SourcesJSON:     string(sources),
		Status:          rec.Status,
		ErrorCode:       rec.ErrorCode,
		ErrorMessage:    rec.ErrorMessage,
		FailedNodeID:    rec.FailedNodeID,
		ExecutionTimeMS: rec.ExecutionTimeMS,
	}

	return id, s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&exec).Error; err != nil {
			return err
		}
		messages := []ChatMessage{
			{UserID: rec.UserID, ExecutionID: id, Role: "user", Content: rec.Query},
		}
		if rec.Status == StatusCompleted {
			messages = append(messages, ChatMessage{
				UserID: rec.UserID, ExecutionID: id, Role: "assistant", Content: rec.Response,
			})
		}
		return tx.Create(&messages).Error
	})
}

func (s *Store) append(ctx context.Context, rec Record) error {
	_, err := s.AppendSync(ctx, rec)
	return err
}

// ListByUser returns a user's executions, most recent first.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]Execution, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var execs []Execution
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&execs).Error
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "list executions").WithCause(err)
	}
	return execs, nil
}

// Get returns one execution by id.
func (s *Store) Get(ctx context.Context, id string) (*Execution, error) {
	var exec Execution
	err := s.db.WithContext(ctx).First(&exec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrNotFound, "execution not found")
	}
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "load execution").WithCause(err)
	}
	return &exec, nil
}

// Sources decodes the stored citation list of an execution.
func (e *Execution) Sources() []string {
	if strings.TrimSpace(e.SourcesJSON) == "" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(e.SourcesJSON), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

// GetStats aggregates counts across all runs and the mean execution time of
// completed ones. Failed runs abort early, so their durations would skew the
// average.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	db := s.db.WithContext(ctx).Model(&Execution{})

	if err := db.Count(&stats.TotalExecutions).Error; err != nil {
		return nil, types.NewError(types.ErrInternalError, "count executions").WithCause(err)
	}
	if err := s.db.WithContext(ctx).Model(&Execution{}).
		Where("status = ?", StatusCompleted).
		Count(&stats.CompletedExecutions).Error; err != nil {
		return nil, types.NewError(types.ErrInternalError, "count completed executions").WithCause(err)
	}
	stats.FailedExecutions = stats.TotalExecutions - stats.CompletedExecutions

	if stats.TotalExecutions > 0 {
		var avg sql.NullFloat64
		if err := s.db.WithContext(ctx).Model(&Execution{}).
			Where("status = ?", StatusCompleted).
			Select("AVG(execution_time_ms)").
			Scan(&avg).Error; err != nil {
			return nil, types.NewError(types.ErrInternalError, "average execution time").WithCause(err)
		}
		if avg.Valid {
			stats.AvgExecutionTimeMS = avg.Float64
		}
	}
	return &stats, nil
}

// Flush waits for all in-flight asynchronous writes. Tests and shutdown use
// it to avoid losing the tail of the history.
func (s *Store) Flush() {
	s.wg.Wait()
}
