package content

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) ListPrompts(ctx context.Context) ([]Prompt, error) {
	var out []Prompt
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// GetPrompt returns the prompt content, or ok=false when unset.
func (r *Repo) GetPrompt(ctx context.Context, name string) (string, bool) {
	var p Prompt
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&p).Error
	if err != nil {
		return "", false
	}
	return p.Content, true
}

func (r *Repo) UpsertPrompt(ctx context.Context, name, contentText string) error {
	p := Prompt{Name: name, Content: contentText}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
		}).
		Create(&p).Error
}

func (r *Repo) ListDocuments(ctx context.Context) ([]Document, error) {
	var out []Document
	if err := r.db.WithContext(ctx).Order("kind ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) GetDocument(ctx context.Context, kind string) (*Document, error) {
	var d Document
	if err := r.db.WithContext(ctx).Where("kind = ?", kind).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repo) UpsertDocument(ctx context.Context, kind, title, contentText string) (*Document, error) {
	d := Document{Kind: kind, Title: title, Content: contentText}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "content", "updated_at"}),
		}).
		Create(&d).Error
	if err != nil {
		return nil, err
	}
	if d.ID == 0 {
		// conflict path: reload to pick up the existing row
		existing, err := r.GetDocument(ctx, kind)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}
	return &d, nil
}
