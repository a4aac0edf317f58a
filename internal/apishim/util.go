package apishim

import "strconv"

// formatID renders a numeric row id as the v2 API's string-typed id field.
func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
