package sim

// HookPos defines the enum of possible hooking positions
type HookPos struct {
	Name string
}

// HookCtx is the context that holds all the information about the site that a
// hook is triggered
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hookable defines an object that accept Hooks
type Hookable interface {
	// AcceptHook registers a hook
	AcceptHook(hook Hook)
}

// HookPosProcessResume triggers right before a process gets control. The Item
// is the *Process and the Detail is the VTimeInSec it resumes at.
var HookPosProcessResume = &HookPos{Name: "ProcessResume"}

// HookPosProcessTerminate triggers when a process terminates. The Item is the
// *Process and the Detail is the current VTimeInSec.
var HookPosProcessTerminate = &HookPos{Name: "ProcessTerminate"}

// HookPosSimulationEnd triggers when the event queue runs dry. The Detail is
// the current VTimeInSec.
var HookPosSimulationEnd = &HookPos{Name: "SimulationEnd"}

// HookPosReset triggers after the kernel completes a reset.
var HookPosReset = &HookPos{Name: "Reset"}

// Hook is a short piece of program that can be invoked by a hookable object.
//
// Kernel hooks run while the kernel lock is held. They must not call kernel
// or process methods other than ID and Name.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx)
}

// A HookableBase provides some utility function for other type that implement
// the Hookable interface.
type HookableBase struct {
	Hooks []Hook
}

// NewHookableBase creates a HookableBase object
func NewHookableBase() *HookableBase {
	h := new(HookableBase)
	h.Hooks = make([]Hook, 0)
	return h
}

// AcceptHook register a hook
func (h *HookableBase) AcceptHook(hook Hook) {
	h.Hooks = append(h.Hooks, hook)
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.Hooks)
}

// InvokeHook triggers the register Hooks
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.Hooks {
		hook.Func(ctx)
	}
}
