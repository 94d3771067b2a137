package storage

import (
	"context"
	"path"

	"github.com/google/uuid"
)

// ObjectStore is durable storage for generated assets.
type ObjectStore interface {
	// Upload writes data at path, replacing any existing object.
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	// PublicURL returns the stable URL clients fetch the object from.
	PublicURL(path string) string
}

// ClipPath namespaces a clip's video by workspace and project.
func ClipPath(workspaceID, projectID, clipID uuid.UUID) string {
	return path.Join(workspaceID.String(), projectID.String(), clipID.String()+".mp4")
}

// TransitionPath is where the blend leaving clipID is stored.
func TransitionPath(workspaceID, projectID, clipID uuid.UUID) string {
	return path.Join(workspaceID.String(), projectID.String(), "transition_"+clipID.String()+".mp4")
}
