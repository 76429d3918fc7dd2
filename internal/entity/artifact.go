package entity

// UploadedArtifact is a file staged on local storage for one pipeline run.
type UploadedArtifact struct {
	Path        string
	MediaType   string
	DisplayName string
	Size        int64
}
