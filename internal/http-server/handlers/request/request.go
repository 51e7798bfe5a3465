package request

import (
	"net/http"
	"strconv"
)

// Limit reads the "limit" query parameter, zero when absent or malformed.
func Limit(r *http.Request) int64 {
	limit, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
