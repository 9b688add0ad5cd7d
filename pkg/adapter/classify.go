package adapter

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"syscall"

	"github.com/leapstack-labs/leapaudit/pkg/core"
)

// ClassifyError maps a database/sql error to an audit error kind.
// Connection-level failures are EngineUnavailable; anything the server
// answered with is QueryRejected.
func ClassifyError(err error) core.ErrorKind {
	var ae *core.AuditError
	switch {
	case err == nil:
		return core.KindUnknown
	case errors.As(err, &ae):
		return ae.Kind
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return core.Cancelled
	case IsConnectionError(err):
		return core.EngineUnavailable
	default:
		return core.QueryRejected
	}
}

// IsConnectionError reports whether err comes from the transport rather than the server.
func IsConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
