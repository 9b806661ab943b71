package store

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Run records one processed document
type Run struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	SourcePath string    `gorm:"index" json:"source_path"`
	OutputPath string    `json:"output_path"`
	Tasks      string    `json:"tasks"`
	Confidence float64   `json:"confidence"`
	SoftErrors int       `json:"soft_errors"`
	Pages      int       `json:"pages"`
	DurationMs int64     `json:"duration_ms"`
	CacheHit   bool      `json:"cache_hit"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// BeforeCreate hook for Run
func (r *Run) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// TaskList splits the stored task names
func (r *Run) TaskList() []string {
	if r.Tasks == "" {
		return nil
	}
	return strings.Split(r.Tasks, ",")
}

// SetTaskList joins task names for storage
func (r *Run) SetTaskList(tasks []string) {
	r.Tasks = strings.Join(tasks, ",")
}
