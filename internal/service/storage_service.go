package service

import (
	"context"
	"errors"
	"io"
	"net/http"
)

// SupabaseStorage uploads raw document bytes to Supabase object storage.
type SupabaseStorage struct {
	baseURL string
	apiKey  string
}

// NewStorageService creates the storage uploader.
func NewStorageService(baseURL, apiKey string) *SupabaseStorage {
	return &SupabaseStorage{
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// Upload stores the file under the given object path.
func (s *SupabaseStorage) Upload(ctx context.Context, path string, file io.Reader) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/storage/v1/object/"+path,
		file,
	)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.New("storage upload failed")
	}

	return nil
}
