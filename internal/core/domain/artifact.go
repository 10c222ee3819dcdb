package domain

import "time"

const (
	// ArtifactExt is the suffix of every snapshot artifact.
	ArtifactExt = ".qsnap"

	// BackupExt is appended to an artifact name while a restore is in flight.
	BackupExt = ".bak"
)

// Artifact is a durable compressed snapshot on stable storage.
type Artifact struct {
	Path      string    `json:"path" yaml:"path"`
	Name      string    `json:"name" yaml:"name"`
	Label     string    `json:"label,omitempty" yaml:"label,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Size      int64     `json:"size" yaml:"size"`
	Codec     string    `json:"codec,omitempty" yaml:"codec,omitempty"`
	Digest    string    `json:"digest,omitempty" yaml:"digest,omitempty"`
	Leader    ProcessID `json:"leader,omitempty" yaml:"leader,omitempty"`
}

// BackupPath returns the transactional alias used during restore.
func (a *Artifact) BackupPath() string {
	return a.Path + BackupExt
}
