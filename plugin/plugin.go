// Package plugin is the instrumentation subsystem: subscribers register
// interest in translation events, receive a per-block descriptor after
// the first translation pass and attach execution or memory-access
// callbacks to individual instruction slots, which the driver then emits
// during the second pass.
package plugin

import "github.com/colorfulnotion/xlate/log"

// Event is a bitmask of instrumentation-event subscriptions.
type Event uint32

const (
	EvTBTrans Event = 1 << iota
	EvInsnExec
	EvMemAccess
)

// ExecCallback is invoked when an instrumented instruction (or block)
// executes.
type ExecCallback struct {
	Fn       func(vaddr uint64, userdata any)
	Userdata any
}

// MemCallback is invoked around an instrumented memory access.
type MemCallback struct {
	Fn       func(vaddr uint64, addr uint64, size int, isStore bool, userdata any)
	Userdata any
}

// Insn is one hookable instruction slot of a block descriptor.
type Insn struct {
	Vaddr   uint64
	ExecCbs []ExecCallback
	MemCbs  []MemCallback

	// CallsHelpers marks the instruction's memory accesses as routed
	// through out-of-line helpers, which need explicit enable/disable
	// brackets rather than inline callback attachment.
	CallsHelpers bool
}

// TB is the per-block descriptor handed to subscribers after the first
// translation pass. Slots are allocated in instruction order.
type TB struct {
	Vaddr   uint64
	ExecCbs []ExecCallback
	Insns   []*Insn
}

// NewTB starts an empty descriptor for the block at vaddr.
func NewTB(vaddr uint64) *TB {
	return &TB{Vaddr: vaddr}
}

// InsnGet allocates the next instruction slot. Called once per
// instruction during pass 1.
func (ptb *TB) InsnGet(vaddr uint64) *Insn {
	insn := &Insn{Vaddr: vaddr}
	ptb.Insns = append(ptb.Insns, insn)
	return insn
}

// TBTransFn inspects a freshly translated block descriptor and attaches
// callbacks to it.
type TBTransFn func(ptb *TB)

// Registry tracks subscribers. It is populated at startup and read-only
// during translation.
type Registry struct {
	mask    Event
	tbTrans []TBTransFn
}

func NewRegistry() *Registry {
	return &Registry{}
}

// RegisterTBTrans subscribes fn to block-translation events.
func (r *Registry) RegisterTBTrans(fn TBTransFn) {
	r.tbTrans = append(r.tbTrans, fn)
	r.mask |= EvTBTrans
	log.Debug(log.PluginMonitoring, "tb-trans subscriber registered", "subscribers", len(r.tbTrans))
}

// Mask returns the event subscriptions to stamp onto new blocks.
func (r *Registry) Mask() Event {
	if r == nil {
		return 0
	}
	return r.mask
}

// TBTrans delivers the pass-1 descriptor to every subscriber.
func (r *Registry) TBTrans(ptb *TB) {
	for _, fn := range r.tbTrans {
		fn(ptb)
	}
}
