package content

import "time"

// Prompt names used by chat orchestration.
const (
	PromptSystem      = "system"
	PromptSummary     = "summary"
	PromptSuggestions = "suggestions"
)

// Prompt is an admin-editable prompt text consumed read-only by the
// chat service.
type Prompt struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"name"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Prompt) TableName() string { return "admin_prompts" }

// Document is an admin-managed reference text, addressed by kind.
type Document struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"kind"`
	Title     string    `gorm:"type:varchar(190);not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Document) TableName() string { return "admin_documents" }
