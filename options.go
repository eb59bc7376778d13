package zx

import (
	"time"

	zerr "github.com/pjkundert/zeromq3-0/errors"
)

// Option names used by SetOption/GetOption, grounded on the teacher's
// options.go string-constant style.
const (
	OptionSendHWM            = "SNDHWM"
	OptionRecvHWM            = "RCVHWM"
	OptionSendTimeout        = "SNDTIMEO"
	OptionRecvTimeout        = "RCVTIMEO"
	OptionIdentity           = "IDENTITY"
	OptionAffinity           = "AFFINITY"
	OptionDelayOnClose       = "DELAY-ON-CLOSE"
	OptionDelayOnDisconnect  = "DELAY-ON-DISCONNECT"
	OptionImmediateConnect   = "IMMEDIATE-CONNECT"
	OptionFilter             = "FILTER"
	OptionSubscribe          = "SUBSCRIBE"
	OptionUnsubscribe        = "UNSUBSCRIBE"
	OptionRcvLabel           = "RCVLABEL"
	OptionRcvMore            = "RCVMORE"
	OptionFD                 = "FD"
	OptionEvents             = "EVENTS"
)

// PollEvents is the bitmask returned by getsockopt(EVENTS): the OR of
// PollIn (xhas_in) and PollOut (xhas_out). It never blocks to compute.
type PollEvents int

const (
	PollIn  PollEvents = 1 << 0
	PollOut PollEvents = 1 << 1
)

// optionSet is the generic string-keyed option registry shared by every
// baseSocket, with typed accessors for the handful of options the core
// itself interprets; anything it doesn't recognize falls through to the
// owning protocol's XSetOption/XGetOption override.
type optionSet struct {
	sendHWM           int
	recvHWM           int
	sendTimeout       time.Duration // negative = infinite, 0 = non-blocking
	recvTimeout       time.Duration
	identity          []byte
	affinity          uint64
	delayOnClose      bool
	delayOnDisconnect bool
	immediateConnect  bool
	filter            bool
}

func newOptionSet() *optionSet {
	return &optionSet{
		sendHWM:     1000,
		recvHWM:     1000,
		sendTimeout: -1,
		recvTimeout: -1,
	}
}

// getCore resolves a core-level option. ok is false if name is not a
// core option (caller should then try the protocol-specific override).
func (o *optionSet) getCore(name string) (interface{}, bool, error) {
	switch name {
	case OptionSendHWM:
		return o.sendHWM, true, nil
	case OptionRecvHWM:
		return o.recvHWM, true, nil
	case OptionSendTimeout:
		return o.sendTimeout, true, nil
	case OptionRecvTimeout:
		return o.recvTimeout, true, nil
	case OptionIdentity:
		return append([]byte(nil), o.identity...), true, nil
	case OptionAffinity:
		return o.affinity, true, nil
	case OptionDelayOnClose:
		return o.delayOnClose, true, nil
	case OptionDelayOnDisconnect:
		return o.delayOnDisconnect, true, nil
	case OptionImmediateConnect:
		return o.immediateConnect, true, nil
	case OptionFilter:
		return o.filter, true, nil
	}
	return nil, false, nil
}

func (o *optionSet) setCore(name string, v interface{}) (bool, error) {
	switch name {
	case OptionSendHWM:
		n, ok := v.(int)
		if !ok || n < 0 {
			return true, zerr.ErrInvalid
		}
		o.sendHWM = n
		return true, nil
	case OptionRecvHWM:
		n, ok := v.(int)
		if !ok || n < 0 {
			return true, zerr.ErrInvalid
		}
		o.recvHWM = n
		return true, nil
	case OptionSendTimeout:
		d, ok := v.(time.Duration)
		if !ok {
			return true, zerr.ErrInvalid
		}
		o.sendTimeout = d
		return true, nil
	case OptionRecvTimeout:
		d, ok := v.(time.Duration)
		if !ok {
			return true, zerr.ErrInvalid
		}
		o.recvTimeout = d
		return true, nil
	case OptionIdentity:
		b, ok := v.([]byte)
		if !ok || len(b) == 0 {
			return true, zerr.ErrInvalid
		}
		o.identity = append([]byte(nil), b...)
		return true, nil
	case OptionAffinity:
		n, ok := v.(uint64)
		if !ok {
			return true, zerr.ErrInvalid
		}
		o.affinity = n
		return true, nil
	case OptionDelayOnClose:
		b, ok := v.(bool)
		if !ok {
			return true, zerr.ErrInvalid
		}
		o.delayOnClose = b
		return true, nil
	case OptionDelayOnDisconnect:
		b, ok := v.(bool)
		if !ok {
			return true, zerr.ErrInvalid
		}
		o.delayOnDisconnect = b
		return true, nil
	case OptionImmediateConnect:
		b, ok := v.(bool)
		if !ok {
			return true, zerr.ErrInvalid
		}
		o.immediateConnect = b
		return true, nil
	case OptionFilter:
		b, ok := v.(bool)
		if !ok {
			return true, zerr.ErrInvalid
		}
		o.filter = b
		return true, nil
	}
	return false, nil
}
