package ingest

import (
	"fmt"
	"strings"

	"github.com/termhub/termsync/errors"
)

const (
	errorMessageLimit = 1024
	rootCauseFrames   = 5
)

// ErrorMessage renders an error for persistence: the message chain plus the
// innermost frames of the root cause, truncated to fit the audit columns.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()

	if frames := rootCause(err); len(frames) > 0 {
		msg += "\n caused by: " + strings.Join(frames, "\n ")
	}
	if len(msg) > errorMessageLimit {
		msg = msg[:errorMessageLimit]
	}
	return msg
}

// rootCause returns the innermost stack frames of the error's root cause,
// innermost first. The deepest error in the chain carrying a stack wins.
func rootCause(err error) []string {
	trace := errors.GetReportableStackTrace(err)
	for c := errors.UnwrapOnce(err); c != nil; c = errors.UnwrapOnce(c) {
		if tr := errors.GetReportableStackTrace(c); tr != nil {
			trace = tr
		}
	}
	if trace == nil {
		return nil
	}

	// reportable frames are ordered outermost first
	var frames []string
	for i := len(trace.Frames) - 1; i >= 0 && len(frames) < rootCauseFrames; i-- {
		fr := trace.Frames[i]
		frames = append(frames, fmt.Sprintf("%s.%s (%s:%d)", fr.Module, fr.Function, fr.Filename, fr.Lineno))
	}
	return frames
}
