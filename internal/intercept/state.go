package intercept

// State is the per-request dispatch state.
type State int

const (
	// StateUnrecognized: no rule matched, the request passes through untouched.
	StateUnrecognized State = iota
	// StateRecognized: a rule matched and the side channel is stripped.
	StateRecognized
	// StateKeyResolving: key material is being resolved, possibly over the network.
	StateKeyResolving
	// StateTransforming: the body is being decrypted or descrambled.
	StateTransforming
	// StateSubstituted: the response carries the restored body.
	StateSubstituted
)

func (s State) String() string {
	switch s {
	case StateUnrecognized:
		return "unrecognized"
	case StateRecognized:
		return "recognized"
	case StateKeyResolving:
		return "key-resolving"
	case StateTransforming:
		return "transforming"
	case StateSubstituted:
		return "substituted"
	default:
		return "unknown"
	}
}

