package history

import (
	"time"

	"gorm.io/gorm"
)

// ExecutionStatus records how a run ended.
type ExecutionStatus string

const (
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
)

// Execution is one persisted workflow run.
type Execution struct {
	ID              string          `gorm:"primaryKey;size:36" json:"id"`
	UserID          string          `gorm:"index;size:64;not null" json:"user_id"`
	Query           string          `gorm:"type:text;not null" json:"query"`
	Response        string          `gorm:"type:text" json:"response"`
	SourcesJSON     string          `gorm:"type:text" json:"-"`
	Status          ExecutionStatus `gorm:"index;size:16;not null" json:"status"`
	ErrorCode       string          `gorm:"size:48" json:"error_code,omitempty"`
	ErrorMessage    string          `gorm:"type:text" json:"error_message,omitempty"`
	FailedNodeID    string          `gorm:"size:64" json:"failed_node_id,omitempty"`
	ExecutionTimeMS float64         `json:"execution_time_ms"`
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`
}

// ChatMessage is one side of a persisted conversation turn.
type ChatMessage struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      string    `gorm:"index;size:64;not null" json:"user_id"`
	ExecutionID string    `gorm:"index;size:36" json:"execution_id"`
	Role        string    `gorm:"size:16;not null" json:"role"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// Migrate creates or updates the history tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Execution{}, &ChatMessage{})
}
