package service

import (
	"errors"
	"net/url"

	"github.com/99minutos/session-security/internal/core/domain"
)

// Redirect is where a failed login is sent and the message it carries.
type Redirect struct {
	Target  string
	Message string
}

// FailureClassifier turns authentication errors into a failure-page redirect.
type FailureClassifier struct {
	failurePath string
}

func NewFailureClassifier(failurePath string) FailureClassifier {
	return FailureClassifier{failurePath: failurePath}
}

// Classify is total: any error, including nil and errors that are not a
// *domain.AuthFailure, yields a redirect with a user-safe message.
func (c FailureClassifier) Classify(err error) Redirect {
	msg := domain.MessageUnknown
	var failure *domain.AuthFailure
	if errors.As(err, &failure) {
		msg = failure.Kind.MessageKey()
	}
	return Redirect{
		Target:  c.failurePath + "?message=" + url.QueryEscape(msg),
		Message: msg,
	}
}
