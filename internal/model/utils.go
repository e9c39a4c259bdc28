package model

// TruncateString cuts a string down to the maximum allowed length.
func TruncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength]
}

// TruncateStringPtr truncates through a nullable string, preserving nil.
func TruncateStringPtr(s *string, maxLength int) *string {
	if s == nil {
		return nil
	}
	truncated := TruncateString(*s, maxLength)
	return &truncated
}
