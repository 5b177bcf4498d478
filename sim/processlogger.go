package sim

import (
	"github.com/sirupsen/logrus"
)

// A LogHook is a hook that records what happens in the simulation.
type LogHook interface {
	Hook
}

// LogHookBase provides the logger shared by LogHooks.
type LogHookBase struct {
	Logger logrus.FieldLogger
}

// ProcessLogger is a hook that logs every process resume and termination.
type ProcessLogger struct {
	LogHookBase
}

// NewProcessLogger returns a ProcessLogger that writes into the logger.
func NewProcessLogger(logger logrus.FieldLogger) *ProcessLogger {
	h := new(ProcessLogger)
	h.Logger = logger

	return h
}

// Func logs the process carried by the hook context.
func (h *ProcessLogger) Func(ctx HookCtx) {
	var what string

	switch ctx.Pos {
	case HookPosProcessResume:
		what = "resume"
	case HookPosProcessTerminate:
		what = "terminate"
	default:
		return
	}

	p, ok := ctx.Item.(*Process)
	if !ok {
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"time":    ctx.Detail,
		"process": p.Name(),
		"id":      p.ID(),
	}).Info(what)
}
