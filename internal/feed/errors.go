package feed

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindHTTP
	KindDecode
)

func (kind ErrorKind) String() string {
	switch kind {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindDecode:
		return "decode"
	}
	return "unknown"
}

// Sentinels for errors.Is classification of a *FetchError.
var (
	ErrNetwork = errors.New("feed: network failure")
	ErrHTTP    = errors.New("feed: unexpected http status")
	ErrDecode  = errors.New("feed: undecodable payload")
)

type FetchError struct {
	Kind       ErrorKind
	StatusCode int
	URL        string
	Err        error
}

func (fetchError *FetchError) Error() string {
	switch fetchError.Kind {
	case KindHTTP:
		return fmt.Sprintf("HTTP %d from %s", fetchError.StatusCode, fetchError.URL)
	case KindDecode:
		return fmt.Sprintf("failed to decode feed from %s: %v", fetchError.URL, fetchError.Err)
	}
	return fmt.Sprintf("failed to fetch %s: %v", fetchError.URL, fetchError.Err)
}

func (fetchError *FetchError) Unwrap() error {
	return fetchError.Err
}

func (fetchError *FetchError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return fetchError.Kind == KindNetwork
	case ErrHTTP:
		return fetchError.Kind == KindHTTP
	case ErrDecode:
		return fetchError.Kind == KindDecode
	}
	return false
}

// KindOf reports the failure kind of err, or "other" when err is not a *FetchError.
func KindOf(err error) string {
	var fetchError *FetchError
	if errors.As(err, &fetchError) {
		return fetchError.Kind.String()
	}
	return "other"
}
