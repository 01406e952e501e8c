package postgres

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// nullString maps the empty string to SQL NULL.
func nullString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
