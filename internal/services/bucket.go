package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/agenticcms/agenticcms-backend/internal/agent"
	"github.com/agenticcms/agenticcms-backend/internal/logger"
)

// BucketService persists compiled artifact files and mints the public URL
// stored on each artifact row. Files live under a local storage root served
// at /mock-storage; swapping in a cloud bucket only changes this service.
type BucketService interface {
	UploadArtifacts(ctx context.Context, parentID uuid.UUID, drafts []agent.ArtifactDraft) ([]string, error)
	PublicURL(parentID uuid.UUID, fileName string) string
	StorageRoot() string
}

type bucketService struct {
	log  *logger.Logger
	root string
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
	root := strings.TrimSpace(os.Getenv("ARTIFACT_STORAGE_DIR"))
	if root == "" {
		root = "./mock-storage"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %q: %w", root, err)
	}
	return &bucketService{
		log:  log.With("service", "BucketService"),
		root: root,
	}, nil
}

// UploadArtifacts writes every draft concurrently and returns URLs in draft
// order. Any single failure aborts the batch.
func (bs *bucketService) UploadArtifacts(ctx context.Context, parentID uuid.UUID, drafts []agent.ArtifactDraft) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	dir := filepath.Join(bs.root, parentID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}

	urls := make([]string, len(drafts))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range drafts {
		i, d := i, d
		g.Go(func() error {
			// os.WriteFile cannot be interrupted, so the deadline is
			// checked between files.
			if err := gctx.Err(); err != nil {
				return err
			}
			name := filepath.Base(d.FileName)
			if name == "" || name == "." || name == string(filepath.Separator) {
				return fmt.Errorf("invalid artifact file name %q", d.FileName)
			}
			if err := os.WriteFile(filepath.Join(dir, name), []byte(d.Content), 0o644); err != nil {
				return fmt.Errorf("write artifact %q: %w", name, err)
			}
			urls[i] = bs.PublicURL(parentID, name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bs.log.Debug("artifacts stored", "parent_id", parentID, "count", len(drafts))
	return urls, nil
}

func (bs *bucketService) PublicURL(parentID uuid.UUID, fileName string) string {
	return fmt.Sprintf("/mock-storage/%s/%s", parentID, fileName)
}

func (bs *bucketService) StorageRoot() string {
	return bs.root
}
