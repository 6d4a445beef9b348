package broker

import (
	"errors"
	"fmt"
	"strings"
)

// Terminal retcodes the bot reacts to. Everything else surfaces as a plain
// APIError.
const (
	RetcodeDone         = 10009
	RetcodePlaced       = 10008
	RetcodeInvalidPrice = 10015
	RetcodeInvalidStops = 10016
	RetcodeMarketClosed = 10018
	RetcodeNoMoney      = 10019
	RetcodeTooManyReqs  = 10024
	RetcodeAlgoDisabled = 10027
)

// ErrNotLoggedIn is returned by terminal calls before Login succeeds.
var ErrNotLoggedIn = errors.New("broker: terminal session not logged in")

// APIError carries the terminal (or gateway HTTP) failure code for a call.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("broker error %d: %s", e.Code, e.Msg)
}

// IsInvalidPrice reports the retcode that permits the one-shot retry as a
// market order.
func IsInvalidPrice(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == RetcodeInvalidPrice
}

// IsAlgoDisabled reports the fatal algo-trading-disabled condition.
func IsAlgoDisabled(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == RetcodeAlgoDisabled
}

// IsTransient reports failures worth a five-second back-off and retry:
// connection loss, rate limiting, the terminal not being up yet.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotLoggedIn) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case RetcodeTooManyReqs, RetcodeMarketClosed:
			return true
		}
		// Gateway HTTP layer failures.
		return apiErr.Code == 429 || (apiErr.Code >= 500 && apiErr.Code < 600)
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"no such host",
		"network",
		"eof",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// IsFatal reports conditions where the operation must be abandoned without
// retry: algo trading off, unknown symbol, bad credentials.
func IsFatal(err error) bool {
	if IsAlgoDisabled(err) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 401 || apiErr.Code == 403 || apiErr.Code == 404
	}
	return false
}
