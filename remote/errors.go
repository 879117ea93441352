package remote

import "fmt"

// Category is a user-facing classification of an upload failure.
type Category string

const (
	CategoryAuth       Category = "auth"       // credentials missing or expired
	CategoryPermission Category = "permission" // authenticated but not allowed
	CategoryRateLimit  Category = "rate-limit" // backend throttled the request
	CategoryNetwork    Category = "network"    // request never got an HTTP answer
	CategoryServer     Category = "server"     // backend error or unexpected status
)

// UploadError is a remote API rejection translated into a category the
// UI can show as-is.
type UploadError struct {
	Category Category
	Status   int
	Detail   string
	Cause    error
}

func (e *UploadError) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("remote: upload failed (%s): %v", e.Category, e.Cause)
	case e.Detail != "":
		return fmt.Sprintf("remote: upload failed (%s, status %d): %s", e.Category, e.Status, e.Detail)
	default:
		return fmt.Sprintf("remote: upload failed (%s, status %d)", e.Category, e.Status)
	}
}

func (e *UploadError) Unwrap() error { return e.Cause }

// Categorize maps an HTTP status to an UploadError.
func Categorize(status int, detail string) *UploadError {
	var cat Category
	switch {
	case status == 401:
		cat = CategoryAuth
	case status == 403:
		cat = CategoryPermission
	case status == 429:
		cat = CategoryRateLimit
	default:
		cat = CategoryServer
	}
	return &UploadError{Category: cat, Status: status, Detail: detail}
}
