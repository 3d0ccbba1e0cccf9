package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bcnelson/firewalld-rule-manager/internal/domain"
)

// GenerateETag generates an ETag for a resource based on its ID and updated_at timestamp.
// Format: "<resource_type>-<id>-<updated_at_unix_nano>"
func GenerateETag(resourceType, id string, updatedAt time.Time) string {
	return fmt.Sprintf(`"%s-%s-%d"`, resourceType, id, updatedAt.UnixNano())
}

// SetETagHeader sets the ETag header on the response.
func SetETagHeader(w http.ResponseWriter, resourceType, id string, updatedAt time.Time) {
	etag := GenerateETag(resourceType, id, updatedAt)
	w.Header().Set("ETag", etag)
}

// CheckIfMatch checks if the If-Match header matches the current ETag.
// Returns true if:
//   - No If-Match header is present (ETag checking is optional)
//   - The If-Match header matches the current ETag
//
// Returns false if the If-Match header is present but doesn't match.
func CheckIfMatch(r *http.Request, resourceType, id string, updatedAt time.Time) bool {
	ifMatch := r.Header.Get("If-Match")
	if ifMatch == "" {
		// No If-Match header, allow the request (ETag is optional)
		return true
	}

	currentETag := GenerateETag(resourceType, id, updatedAt)
	return ifMatch == currentETag
}

// RespondPreconditionFailed writes a 412 Precondition Failed response.
func RespondPreconditionFailed(w http.ResponseWriter, resourceType, id string, updatedAt time.Time) {
	currentETag := GenerateETag(resourceType, id, updatedAt)
	respondStandardError(w, http.StatusPreconditionFailed, domain.ErrCodePreconditionFailed,
		"resource has been modified", "", map[string]any{
			"currentETag": currentETag,
		})
}

// FirewallRule ETag helpers
func SetRuleETag(w http.ResponseWriter, rule *domain.FirewallRule) {
	SetETagHeader(w, "rule", rule.ID, rule.UpdatedAt)
}

func CheckRuleIfMatch(r *http.Request, rule *domain.FirewallRule) bool {
	return CheckIfMatch(r, "rule", rule.ID, rule.UpdatedAt)
}
