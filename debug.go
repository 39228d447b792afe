package pri

// DebugFlags is a bitmask selecting which trace categories a
// Controller emits, the instance-owned analog of libpri's process-wide
// pri_set_debug flags (SPEC_FULL.md's redesign note: instance-owned
// state, never a package-global).
type DebugFlags uint32

const (
	DebugL2 DebugFlags = 1 << iota
	DebugL3
	DebugState
)

// SetDebugFlags selects which trace categories this Controller emits
// through its message hook. It has no effect on other Controllers.
func (c *Controller) SetDebugFlags(flags DebugFlags) {
	c.debug = flags
}

// SetMessageHook installs fn as this Controller's trace sink. fn is
// called with a one-line rendering of each Layer 2 frame or Layer 3
// message header the controller receives, filtered by the flags
// passed to SetDebugFlags. Frames the controller sends are not
// traced. Passing nil disables tracing. This is the
// instance-owned counterpart to libpri's pri_set_message/pri_set_error
// process-global sinks.
func (c *Controller) SetMessageHook(fn func(line string)) {
	c.messageHook = fn
}

func (c *Controller) trace(flag DebugFlags, line string) {
	if c.messageHook == nil || c.debug&flag == 0 {
		return
	}
	c.messageHook(line)
}
