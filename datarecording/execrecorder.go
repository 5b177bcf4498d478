package datarecording

import (
	"os"
	"strings"
	"time"
)

const execInfoTable = "exec_info"

const execTimeFormat = "2006-01-02 15:04:05.000000000"

// execInfo is a property of the program execution.
type execInfo struct {
	Property string
	Value    string
}

// ExecInfoRecorder can attach extra properties to the record of the program
// execution.
type ExecInfoRecorder interface {
	AddExecInfo(property, value string)
}

// execRecorder records how the program that produced the data ran.
type execRecorder struct {
	recorder DataRecorder
	entries  []execInfo
}

func newExecRecorder(recorder DataRecorder) *execRecorder {
	e := &execRecorder{recorder: recorder}
	recorder.CreateTable(execInfoTable, execInfo{})

	return e
}

// Start notes the command line and the start time.
func (e *execRecorder) Start() {
	e.add("Start Time", time.Now().Format(execTimeFormat))
	e.add("Command", strings.Join(os.Args, " "))

	cwd, err := os.Getwd()
	if err == nil {
		e.add("Working Directory", cwd)
	}
}

func (e *execRecorder) add(property, value string) {
	e.entries = append(e.entries, execInfo{Property: property, Value: value})
}

// End writes the properties together with the end time.
func (e *execRecorder) End() {
	e.add("End Time", time.Now().Format(execTimeFormat))

	for _, entry := range e.entries {
		e.recorder.InsertData(execInfoTable, entry)
	}

	e.entries = nil

	e.recorder.Flush()
}

func (t *sqlWriter) AddExecInfo(property, value string) {
	t.exec.add(property, value)
}
