package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/forno-labs/forno-go/internal/domain"
)

// SnapshotArchive writes one JSON object per snapshot, keyed by recipe
// and version. Objects are never overwritten after the first write.
type SnapshotArchive struct {
	client *minio.Client
	bucket string
}

func NewSnapshotArchive(client *minio.Client, bucket string) *SnapshotArchive {
	if client == nil || strings.TrimSpace(bucket) == "" {
		return nil
	}
	return &SnapshotArchive{client: client, bucket: bucket}
}

func SnapshotObjectKey(recipeID string, version int64) string {
	return fmt.Sprintf("recipes/%s/v%d.json", strings.TrimSpace(recipeID), version)
}

func (a *SnapshotArchive) ArchiveSnapshot(ctx context.Context, snapshot domain.RecipeSnapshot) error {
	if a == nil || a.client == nil {
		return fmt.Errorf("snapshot archive not initialized")
	}
	if err := snapshot.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	key := SnapshotObjectKey(snapshot.RecipeID, snapshot.VersionNumber)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put snapshot object: %w", err)
	}
	return nil
}
