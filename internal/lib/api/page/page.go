package page

import (
	"errors"
	"net/http"
	"strconv"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

var ErrInvalidPage = errors.New("skip and limit must be non-negative integers")

// * FromRequest читает skip/limit из query; limit ограничен MaxLimit
func FromRequest(r *http.Request) (skip, limit int, err error) {
	q := r.URL.Query()

	skip, err = intParam(q.Get("skip"), 0)
	if err != nil {
		return 0, 0, err
	}

	limit, err = intParam(q.Get("limit"), DefaultLimit)
	if err != nil {
		return 0, 0, err
	}

	if limit > MaxLimit {
		limit = MaxLimit
	}

	return skip, limit, nil
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, ErrInvalidPage
	}

	return v, nil
}
