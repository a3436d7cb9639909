package commands

import (
	"fmt"
	"strings"

	"github.com/dantte-lp/goreflector/internal/admin"
)

// codeText renders an admin response code the way §6 names it.
func codeText(code int) string {
	switch code {
	case admin.CodeInformational:
		return "informational"
	case admin.CodeLogMessage:
		return "log message"
	case admin.CodeOK:
		return "OK"
	case admin.CodeBadRequest:
		return "bad request"
	case admin.CodeUnauthorized:
		return "unauthorized"
	case admin.CodeForbidden:
		return "forbidden"
	case admin.CodeNotFound:
		return "not found"
	case admin.CodeConflict:
		return "conflict"
	case admin.CodeInternalError:
		return "internal error"
	case admin.CodeNotImplemented:
		return "not implemented"
	default:
		return "unknown"
	}
}

// describeResponse renders a Response as a single human-readable block:
// "<code> <meaning>" followed by the body, if any.
func describeResponse(resp admin.Response) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s", resp.Code, codeText(resp.Code))
	if len(resp.Body) > 0 {
		b.WriteString("\n")
		b.Write(resp.Body)
	}
	return b.String()
}
