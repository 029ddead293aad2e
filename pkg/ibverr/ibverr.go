// Package ibverr defines the error taxonomy for verbs-path failures.
// Every error carries a Kind naming the failed operation plus a free-text
// message, usually the OS error reported by the failing call. Kind is a
// plain string type so that serialized errors from newer taxonomies
// deserialize losslessly instead of failing to parse.
package ibverr

import "errors"

// Kind categorizes a verbs-path failure.
type Kind string

const (
	// AllocMemoryFailed signals a memory allocation failure.
	AllocMemoryFailed Kind = "AllocMemoryFailed"
	// IBGetDeviceListFail signals a failed device list retrieval.
	IBGetDeviceListFail Kind = "IBGetDeviceListFail"
	// IBDeviceNotFound signals that no device matched.
	IBDeviceNotFound Kind = "IBDeviceNotFound"
	// IBOpenDeviceFail signals a failed device open.
	IBOpenDeviceFail Kind = "IBOpenDeviceFail"
	// IBQueryDeviceFail signals a failed device attribute query.
	IBQueryDeviceFail Kind = "IBQueryDeviceFail"
	// IBQueryGidFail signals a failed GID query.
	IBQueryGidFail Kind = "IBQueryGidFail"
	// IBQueryGidTypeFail signals a failed GID type lookup.
	IBQueryGidTypeFail Kind = "IBQueryGidTypeFail"
	// IBQueryPortFail signals a failed port attribute query.
	IBQueryPortFail Kind = "IBQueryPortFail"
	// IBAllocPDFail signals a failed protection domain allocation.
	IBAllocPDFail Kind = "IBAllocPDFail"
	// IBCreateCompChannelFail signals a failed completion channel creation.
	IBCreateCompChannelFail Kind = "IBCreateCompChannelFail"
	// IBSetCompChannelNonBlockFail signals a failed non-blocking switch
	// on a completion channel.
	IBSetCompChannelNonBlockFail Kind = "IBSetCompChannelNonBlockFail"
	// IBGetCompQueueEventFail signals a failed completion queue event read.
	IBGetCompQueueEventFail Kind = "IBGetCompQueueEventFail"
	// IBCreateCompQueueFail signals a failed completion queue creation.
	IBCreateCompQueueFail Kind = "IBCreateCompQueueFail"
	// IBReqNotifyCompQueueFail signals a failed completion notification request.
	IBReqNotifyCompQueueFail Kind = "IBReqNotifyCompQueueFail"
	// IBPollCompQueueFail signals a failed completion queue poll.
	IBPollCompQueueFail Kind = "IBPollCompQueueFail"
	// IBRegMemoryRegionFail signals a failed memory region registration.
	IBRegMemoryRegionFail Kind = "IBRegMemoryRegionFail"
	// IBCreateQueuePairFail signals a failed queue pair creation.
	IBCreateQueuePairFail Kind = "IBCreateQueuePairFail"
	// IBModifyQueuePairFail signals a failed queue pair state transition.
	IBModifyQueuePairFail Kind = "IBModifyQueuePairFail"
	// IBPostRecvFailed signals a failed receive work request post.
	IBPostRecvFailed Kind = "IBPostRecvFailed"
	// IBPostSendFailed signals a failed send work request post.
	IBPostSendFailed Kind = "IBPostSendFailed"
	// IBSetNonBlockFailed signals a failed non-blocking mode switch.
	IBSetNonBlockFailed Kind = "IBSetNonBlockFailed"
	// InsufficientBuffer signals a buffer too small for the operation.
	InsufficientBuffer Kind = "InsufficientBuffer"
)

// knownKinds is the closed set of recognized kinds. Kinds outside this set
// still round-trip through serialization; they just report Known() == false.
var knownKinds = map[Kind]struct{}{
	AllocMemoryFailed:            {},
	IBGetDeviceListFail:          {},
	IBDeviceNotFound:             {},
	IBOpenDeviceFail:             {},
	IBQueryDeviceFail:            {},
	IBQueryGidFail:               {},
	IBQueryGidTypeFail:           {},
	IBQueryPortFail:              {},
	IBAllocPDFail:                {},
	IBCreateCompChannelFail:      {},
	IBSetCompChannelNonBlockFail: {},
	IBGetCompQueueEventFail:      {},
	IBCreateCompQueueFail:        {},
	IBReqNotifyCompQueueFail:     {},
	IBPollCompQueueFail:          {},
	IBRegMemoryRegionFail:        {},
	IBCreateQueuePairFail:        {},
	IBModifyQueuePairFail:        {},
	IBPostRecvFailed:             {},
	IBPostSendFailed:             {},
	IBSetNonBlockFailed:          {},
	InsufficientBuffer:           {},
}

// Known reports whether k belongs to the recognized taxonomy.
func (k Kind) Known() bool {
	_, ok := knownKinds[k]
	return ok
}

func (k Kind) String() string { return string(k) }

// Error is a categorized verbs-path failure.
type Error struct {
	Kind Kind   `json:"kind"`
	Msg  string `json:"msg"`
}

// New builds an Error from a kind and message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an Error from a kind, capturing err's description as the
// message. The capture must happen immediately after the failing call so
// the OS error is not clobbered by a later operation.
func Wrap(kind Kind, err error) *Error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: kind, Msg: msg}
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Msg
}

// Is matches errors by kind, so callers can use errors.Is with a bare
// kind-only Error as the target.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind from err, or "" if err does not carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
