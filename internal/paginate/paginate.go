// Package paginate windows fully composed result sets into pages.
package paginate

import (
	"slices"
	"strconv"
	"strings"

	"github.com/vidstream/backend/internal/apperr"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Request is a validated page request.
type Request struct {
	Page  int
	Limit int
}

// Page is one window of a result set together with totals over the whole set.
type Page[T any] struct {
	Items      []T  `json:"items"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalItems int  `json:"totalItems"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNextPage"`
	HasPrev    bool `json:"hasPrevPage"`
}

// ParseRequest validates raw page and limit parameters. Empty values take the
// defaults. Anything else must be a positive integer and limit must not exceed
// MaxLimit; out-of-range values are rejected rather than clamped.
func ParseRequest(pageRaw, limitRaw string) (Request, error) {
	page, err := parsePositive("page", pageRaw, DefaultPage)
	if err != nil {
		return Request{}, err
	}
	limit, err := parsePositive("limit", limitRaw, DefaultLimit)
	if err != nil {
		return Request{}, err
	}
	if limit > MaxLimit {
		return Request{}, apperr.ValidationFields("invalid pagination", map[string]string{
			"limit": "must not exceed " + strconv.Itoa(MaxLimit),
		})
	}
	return Request{Page: page, Limit: limit}, nil
}

func parsePositive(field, raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperr.ValidationFields("invalid pagination", map[string]string{
			field: "must be a positive integer",
		})
	}
	return n, nil
}

// Paginate returns the requested window of items. A page past the end yields
// an empty Items slice with the totals still populated.
func Paginate[T any](items []T, req Request) Page[T] {
	if req.Page <= 0 {
		req.Page = DefaultPage
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}

	total := len(items)
	totalPages := total / req.Limit
	if total%req.Limit != 0 {
		totalPages++
	}

	// Compare against totalPages before computing the offset; page may be huge.
	var window []T
	if req.Page <= totalPages {
		start := (req.Page - 1) * req.Limit
		end := min(start+req.Limit, total)
		window = slices.Clone(items[start:end])
	} else {
		window = []T{}
	}

	return Page[T]{
		Items:      window,
		Page:       req.Page,
		Limit:      req.Limit,
		TotalItems: total,
		TotalPages: totalPages,
		HasNext:    req.Page < totalPages,
		HasPrev:    req.Page > 1,
	}
}
