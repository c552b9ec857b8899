package interactive

// OutcomeKind identifies which terminal result a flow reached.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota + 1
	OutcomeAuthorizationError
	OutcomeTimeout
	OutcomeCanceled
)

// String makes OutcomeKind satisfy the fmt.Stringer interface. The values
// double as metric labels.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeAuthorizationError:
		return "authorization_error"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// AuthorizationOutcome is the terminal result of one interactive flow.
// Code and State are set for OutcomeSuccess, ErrorCode, Description and URI
// for OutcomeAuthorizationError.
type AuthorizationOutcome struct {
	Kind OutcomeKind

	Code  string
	State string

	ErrorCode   string
	Description string
	URI         string
}

// IsSuccess reports whether the flow produced an authorization code.
func (o AuthorizationOutcome) IsSuccess() bool {
	return o.Kind == OutcomeSuccess
}

// Err converts a non-success outcome into an error: ErrTimeout, ErrCanceled
// or *AuthorizationError. It returns nil for a success.
func (o AuthorizationOutcome) Err() error {
	switch o.Kind {
	case OutcomeSuccess:
		return nil
	case OutcomeAuthorizationError:
		return &AuthorizationError{ErrorCode: o.ErrorCode, Description: o.Description, URI: o.URI}
	case OutcomeTimeout:
		return ErrTimeout
	case OutcomeCanceled:
		return ErrCanceled
	default:
		return &ListenerError{Reason: errUnknownOutcome}
	}
}
