package samples

import "context"

// Repository port (interface for sample persistence)
type Repository interface {
	SaveSample(ctx context.Context, s *Sample) error
	SaveGroup(ctx context.Context, g *SampleGroup) error
	Get(ctx context.Context, participant string, id SampleID) (*Sample, error)
	LatestByParticipant(ctx context.Context, participant string, limit int) ([]*Sample, error)
	ListGroups(ctx context.Context, id SampleID) ([]*SampleGroup, error)
}

// Degrader port (interface for the elliptical partial blur)
type Degrader interface {
	Degrade(sourcePath, outputPath string) (*DegradationParams, error)
}

// Packager port (interface for the on-disk bundle layout)
type Packager interface {
	PackageGroup(carryCode, groupID string, g *GroupCandidate) error
	Archive(carryCode string) (string, error)
}

// AssetLocator port (interface for resolving base-image names to paths)
type AssetLocator interface {
	Locate(name string) (string, error)
	Hash(name string) (string, error)
}

// BundleStore port (interface for archived bundle storage)
type BundleStore interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
	UploadAndCleanup(ctx context.Context, localPath, key string) (string, error)
}
