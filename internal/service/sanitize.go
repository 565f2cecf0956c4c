package service

import "github.com/microcosm-cc/bluemonday"

// sanitizePolicy strips disallowed markup from user-supplied free text before
// it is persisted.
var sanitizePolicy = bluemonday.UGCPolicy()

func sanitize(s string) string {
	return sanitizePolicy.Sanitize(s)
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	clean := sanitize(*s)
	return &clean
}
