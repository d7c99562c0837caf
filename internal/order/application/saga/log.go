package saga

import (
	"sync"
	"time"
)

// Phase 标记执行日志条目记录的阶段。
type Phase string

const (
	PhaseStarted            Phase = "STARTED"
	PhaseCompleted          Phase = "COMPLETED"
	PhaseFailed             Phase = "FAILED"
	PhaseCompensated        Phase = "COMPENSATED"
	PhaseCompensationFailed Phase = "COMPENSATION_FAILED"
)

// Entry 是一条执行日志记录。
type Entry struct {
	Step  string
	Phase Phase
	At    time.Time
	Err   error
}

// ExecutionLog 记录一次 Execute 调用中每个步骤的起止，
// 仅存于内存，生命周期与单次执行一致。
type ExecutionLog struct {
	mu      sync.Mutex
	entries []Entry
}

func NewExecutionLog() *ExecutionLog {
	return &ExecutionLog{}
}

func (l *ExecutionLog) record(step string, phase Phase, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Step: step, Phase: phase, At: time.Now(), Err: err})
}

// Entries 返回日志条目的拷贝。
func (l *ExecutionLog) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}
