package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/m3rciful/lingobot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Error kinds reported as err_code on failed deliveries.
const (
	kindTimeout     = "timeout"
	kindDNS         = "dns"
	kindDial        = "dial"
	kindTLS         = "tls"
	kindRateLimited = "rate_limited"
	kindHTTP4xx     = "http_4xx"
	kindHTTP5xx     = "http_5xx"
	kindUnknown     = "unknown"
)

// StatusCoder is implemented by platform API errors carrying an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if kind := transportKind(err); kind != "" {
		return kind
	}
	return statusKind(platformStatus(err))
}

// transportKind recognizes failures below HTTP: deadlines, resolver, dial
// and TLS errors, including ones wrapped by net/http in *url.Error.
func transportKind(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return kindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return kindTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return kindDNS
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return kindDial
	}
	var alert tls.AlertError
	if errors.As(err, &alert) {
		return kindTLS
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil && urlErr.Err != err {
		return transportKind(urlErr.Err)
	}
	return ""
}

func statusKind(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return kindRateLimited
	case status >= 500:
		return kindHTTP5xx
	case status >= 400:
		return kindHTTP4xx
	}
	return kindUnknown
}

// platformStatus extracts the HTTP-like status of a Graph or Bot API error.
func platformStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return http.StatusTooManyRequests
	}
	var group tele.GroupError
	if errors.As(err, &group) {
		return http.StatusBadRequest
	}
	// telebot formats unknown API errors as "telegram: <description> (<code>)".
	msg := err.Error()
	open, closing := strings.LastIndexByte(msg, '('), strings.LastIndexByte(msg, ')')
	if open >= 0 && closing > open+1 {
		if code, convErr := strconv.Atoi(strings.TrimSpace(msg[open+1 : closing])); convErr == nil {
			return code
		}
	}
	return 0
}

func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return logger.RedactSecrets(err.Error())
}
