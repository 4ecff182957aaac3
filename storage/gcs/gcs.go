// Package gcs implements the storage contract on Google Cloud Storage using
// the REST client from google.golang.org/api.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storagev1 "google.golang.org/api/storage/v1"

	"papervoice/storage"
)

// Store is a bucket-scoped GCS client.
type Store struct {
	svc    *storagev1.Service
	bucket string
}

// New builds a Store for the given bucket. Credentials resolve through the
// usual application-default chain unless overridden via opts.
func New(ctx context.Context, bucket string, opts ...option.ClientOption) (*Store, error) {
	svc, err := storagev1.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}
	return &Store{svc: svc, bucket: bucket}, nil
}

// Bucket returns the bucket this store is scoped to.
func (s *Store) Bucket() string { return s.bucket }

func (s *Store) Write(ctx context.Context, name string, data []byte, contentType string) error {
	obj := &storagev1.Object{Name: name, ContentType: contentType}
	_, err := s.svc.Objects.Insert(s.bucket, obj).
		Media(bytes.NewReader(data)).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.svc.Objects.Get(s.bucket, name).Context(ctx).Download()
	if err != nil {
		if isNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.svc.Objects.Get(s.bucket, name).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", name, err)
	}
	return true, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := s.svc.Objects.List(s.bucket).Prefix(prefix).Pages(ctx, func(page *storagev1.Objects) error {
		for _, obj := range page.Items {
			names = append(names, obj.Name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return names, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	if err := s.svc.Objects.Delete(s.bucket, name).Context(ctx).Do(); err != nil {
		if isNotFound(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

func (s *Store) DeleteBatch(ctx context.Context, names []string) error {
	for _, name := range names {
		if err := s.Delete(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) MakePublic(ctx context.Context, name string) error {
	acl := &storagev1.ObjectAccessControl{Entity: "allUsers", Role: "READER"}
	if _, err := s.svc.ObjectAccessControls.Insert(s.bucket, name, acl).Context(ctx).Do(); err != nil {
		return fmt.Errorf("make %s public: %w", name, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound
	}
	return false
}

var _ storage.Store = (*Store)(nil)
