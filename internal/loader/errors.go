package loader

import "fmt"

// UnreadableArtifactError reports a container path that is missing or is
// neither a directory nor a readable zip-format archive.
type UnreadableArtifactError struct {
	Path string
	Err  error
}

func (e *UnreadableArtifactError) Error() string {
	return fmt.Sprintf("unreadable artifact %s: %v", e.Path, e.Err)
}

func (e *UnreadableArtifactError) Unwrap() error { return e.Err }
