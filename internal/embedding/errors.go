package embedding

import "fmt"

// RuntimeError indicates the native inference runtime could not be
// loaded. This is a configuration problem: callers must treat it as
// fatal and never retry.
type RuntimeError struct {
	Library string
	Err     error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("onnx runtime unavailable (library %q): %v; install onnxruntime or set embedding.onnx_library", e.Library, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsRuntimeError reports whether err is a missing-runtime configuration error
func IsRuntimeError(err error) bool {
	_, ok := err.(*RuntimeError)
	return ok
}

// DownloadError indicates a model asset fetch failed. It propagates to
// the caller without internal retries; a later call may succeed.
type DownloadError struct {
	URL    string
	Status int
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("download %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("download %s: status %d", e.URL, e.Status)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
