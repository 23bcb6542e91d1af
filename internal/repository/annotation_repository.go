package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pdf-review-server/internal/domain"

	"github.com/supabase-community/postgrest-go"
	"golang.org/x/sync/errgroup"
)

// saveBatchWorkers caps concurrent inserts during a pipeline save.
const saveBatchWorkers = 8

// AnnotationRepository implements domain.AnnotationRepository on Supabase.
type AnnotationRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

// NewAnnotationRepository creates the Supabase-backed annotation store.
func NewAnnotationRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) domain.AnnotationRepository {
	return &AnnotationRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

// annotationRow mirrors the annotations table. The model fields travel as a
// JSONB column so the schema does not chase the prompt format.
type annotationRow struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	DocumentID   string          `json:"document_id"`
	Page         int             `json:"page"`
	X            float64         `json:"x"`
	Y            float64         `json:"y"`
	Width        float64         `json:"width"`
	Height       float64         `json:"height"`
	Content      string          `json:"content"`
	Author       string          `json:"author"`
	AIAnnotation json.RawMessage `json:"ai_annotation,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type replyRow struct {
	ID           string    `json:"id"`
	AnnotationID string    `json:"annotation_id"`
	UserID       string    `json:"user_id"`
	Author       string    `json:"author"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

func toRow(a *domain.Annotation) (annotationRow, error) {
	row := annotationRow{
		ID:         a.ID,
		UserID:     a.UserID,
		DocumentID: a.DocumentID,
		Page:       a.Page,
		X:          a.X,
		Y:          a.Y,
		Width:      a.Width,
		Height:     a.Height,
		Content:    a.Content,
		Author:     a.Author,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	if a.AIAnnotation != nil {
		b, err := json.Marshal(a.AIAnnotation)
		if err != nil {
			return row, fmt.Errorf("failed to marshal ai annotation: %w", err)
		}
		row.AIAnnotation = b
	}
	return row, nil
}

func fromRow(row annotationRow) (*domain.Annotation, error) {
	a := &domain.Annotation{
		ID:         row.ID,
		UserID:     row.UserID,
		DocumentID: row.DocumentID,
		Page:       row.Page,
		X:          row.X,
		Y:          row.Y,
		Width:      row.Width,
		Height:     row.Height,
		Content:    row.Content,
		Author:     row.Author,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if len(row.AIAnnotation) > 0 && string(row.AIAnnotation) != "null" {
		var ai domain.AIAnnotation
		if err := json.Unmarshal(row.AIAnnotation, &ai); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ai annotation: %w", err)
		}
		a.AIAnnotation = &ai
	}
	return a, nil
}

func (r *AnnotationRepository) Create(annotation *domain.Annotation, token string) (*domain.Annotation, error) {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to get client with token: %w", err)
	}

	row, err := toRow(annotation)
	if err != nil {
		return nil, err
	}

	// Request "representation" so PostgREST returns the inserted row.
	data, _, err := client.From("annotations").
		Insert(row, false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to create annotation: %w", err)
	}

	var rows []annotationRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to create annotation: empty response")
	}
	return fromRow(rows[0])
}

// SaveBatch inserts a run's annotations with bounded concurrency. A failed
// row is logged and skipped so one bad record does not sink the run; only a
// cancelled context aborts the batch.
func (r *AnnotationRepository) SaveBatch(ctx context.Context, annotations []*domain.Annotation, token string) error {
	sem := make(chan struct{}, saveBatchWorkers)
	g, gctx := errgroup.WithContext(ctx)
	for _, ann := range annotations {
		ann := ann
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}
			if _, err := r.Create(ann, token); err != nil {
				r.logger.Error("Failed to save annotation", err, "annotation_id", ann.ID, "document_id", ann.DocumentID)
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *AnnotationRepository) ListByDocument(documentID string, token string) ([]*domain.Annotation, error) {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to get client with token: %w", err)
	}

	data, _, err := client.From("annotations").
		Select("*", "", false).
		Eq("document_id", documentID).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", err)
	}

	var rows []annotationRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	out := make([]*domain.Annotation, 0, len(rows))
	ids := make([]string, 0, len(rows))
	byID := make(map[string]*domain.Annotation, len(rows))
	for _, row := range rows {
		ann, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, ann)
		ids = append(ids, ann.ID)
		byID[ann.ID] = ann
	}
	if len(ids) == 0 {
		return out, nil
	}

	replyData, _, err := client.From("annotation_replies").
		Select("*", "", false).
		In("annotation_id", ids).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		// Replies are secondary; the annotation list is still useful.
		r.logger.Warn("Failed to list annotation replies", "document_id", documentID, "error", err)
		return out, nil
	}

	var replies []replyRow
	if err := json.Unmarshal(replyData, &replies); err != nil {
		return nil, fmt.Errorf("failed to unmarshal replies: %w", err)
	}
	for _, row := range replies {
		if ann, ok := byID[row.AnnotationID]; ok {
			ann.Replies = append(ann.Replies, domain.AnnotationReply{
				ID:           row.ID,
				AnnotationID: row.AnnotationID,
				UserID:       row.UserID,
				Author:       row.Author,
				Content:      row.Content,
				CreatedAt:    row.CreatedAt,
			})
		}
	}
	return out, nil
}

func (r *AnnotationRepository) GetByID(id string, token string) (*domain.Annotation, error) {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to get client with token: %w", err)
	}

	data, _, err := client.From("annotations").
		Select("*", "", false).
		Eq("id", id).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get annotation: %w", err)
	}

	var rows []annotationRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrAnnotationNotFound
	}
	return fromRow(rows[0])
}

func (r *AnnotationRepository) Update(annotation *domain.Annotation, token string) (*domain.Annotation, error) {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to get client with token: %w", err)
	}

	update := map[string]interface{}{
		"content":    annotation.Content,
		"page":       annotation.Page,
		"x":          annotation.X,
		"y":          annotation.Y,
		"width":      annotation.Width,
		"height":     annotation.Height,
		"updated_at": annotation.UpdatedAt,
	}

	data, _, err := client.From("annotations").
		Update(update, "representation", "").
		Eq("id", annotation.ID).
		Eq("user_id", annotation.UserID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to update annotation: %w", err)
	}

	var rows []annotationRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrAnnotationNotFound
	}
	return fromRow(rows[0])
}

func (r *AnnotationRepository) Delete(userID string, id string, token string) error {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return fmt.Errorf("failed to get client with token: %w", err)
	}

	_, _, err = client.From("annotations").
		Delete("", "").
		Eq("id", id).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete annotation: %w", err)
	}
	return nil
}

func (r *AnnotationRepository) AddReply(reply *domain.AnnotationReply, token string) (*domain.AnnotationReply, error) {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to get client with token: %w", err)
	}

	row := replyRow{
		ID:           reply.ID,
		AnnotationID: reply.AnnotationID,
		UserID:       reply.UserID,
		Author:       reply.Author,
		Content:      reply.Content,
		CreatedAt:    reply.CreatedAt,
	}

	data, _, err := client.From("annotation_replies").
		Insert(row, false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to create reply: %w", err)
	}

	var rows []replyRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to create reply: empty response")
	}
	out := domain.AnnotationReply{
		ID:           rows[0].ID,
		AnnotationID: rows[0].AnnotationID,
		UserID:       rows[0].UserID,
		Author:       rows[0].Author,
		Content:      rows[0].Content,
		CreatedAt:    rows[0].CreatedAt,
	}
	return &out, nil
}
