package handler

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// Order list pagination.
const (
	defaultPageSize = 3
	maxPageSize     = 20
)

var errMalformedIDs = errors.New("must be a comma separated list of integers")

func parseID(s string) (uint64, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}

// parseIDList parses "1,2,3".  An empty string yields no IDs.
func parseIDList(s string) ([]uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]uint64, 0, len(parts))
	for _, p := range parts {
		id, ok := parseID(p)
		if !ok {
			return nil, errMalformedIDs
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseDay parses a YYYY-MM-DD query value as a UTC day.
func parseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		return nil, errors.New("must be a date in YYYY-MM-DD format")
	}
	return &d, nil
}

// pageParams reads page and page_size.  page must be a positive integer;
// page_size falls back to the default when absent or invalid and is
// capped at maxPageSize.
func pageParams(c echo.Context) (page, size int, err error) {
	page = 1
	if v := c.QueryParam("page"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil || page < 1 {
			return 0, 0, errors.New("page must be a positive integer")
		}
	}
	size = defaultPageSize
	if v := c.QueryParam("page_size"); v != "" {
		if n, convErr := strconv.Atoi(v); convErr == nil && n > 0 {
			size = n
		}
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size, nil
}

// pageLink returns the absolute URL of another page of the current
// listing, keeping every other query parameter.
func pageLink(c echo.Context, page int) *string {
	req := c.Request()
	q := req.URL.Query()
	q.Set("page", strconv.Itoa(page))
	u := url.URL{
		Scheme:   c.Scheme(),
		Host:     req.Host,
		Path:     req.URL.Path,
		RawQuery: q.Encode(),
	}
	s := u.String()
	return &s
}
