package domain

import "fmt"

// FailureKind classifies why an authentication attempt failed.
type FailureKind int

const (
	FailureUnknown FailureKind = iota
	FailureBadCredentials
	FailureAccountNotFound
	FailureCredentialsAbsent
	FailureInternal
)

func (k FailureKind) String() string {
	switch k {
	case FailureBadCredentials:
		return "bad_credentials"
	case FailureAccountNotFound:
		return "account_not_found"
	case FailureCredentialsAbsent:
		return "credentials_absent"
	case FailureInternal:
		return "internal_error"
	default:
		return "unknown"
	}
}

// Message keys shown to the user on the failure page.
const (
	MessageBadCredentials    = "아이디 혹은 비밀번호를 다시 확인해주세요"
	MessageInternal          = "서버 내부에 오류가 발생했습니다."
	MessageAccountNotFound   = "존재하지 않는 정보입니다."
	MessageCredentialsAbsent = "인증이 거부되었습니다."
	MessageUnknown           = "알 수 없는 에러 발생"
)

// MessageKey returns the user-facing message for k. Unknown kinds get the
// generic message.
func (k FailureKind) MessageKey() string {
	switch k {
	case FailureBadCredentials:
		return MessageBadCredentials
	case FailureInternal:
		return MessageInternal
	case FailureAccountNotFound:
		return MessageAccountNotFound
	case FailureCredentialsAbsent:
		return MessageCredentialsAbsent
	default:
		return MessageUnknown
	}
}

// AuthFailure is returned by the authentication engine. Cause is kept for
// logging only and must never reach the client.
type AuthFailure struct {
	Kind  FailureKind
	Cause error
}

func NewAuthFailure(kind FailureKind, cause error) *AuthFailure {
	return &AuthFailure{Kind: kind, Cause: cause}
}

func (f *AuthFailure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("authentication failed: %s: %v", f.Kind, f.Cause)
	}
	return "authentication failed: " + f.Kind.String()
}

func (f *AuthFailure) Unwrap() error { return f.Cause }
