// Package viewstate holds the per-widget state machines and their pure view
// projections. A machine never renders; observers receive a fresh view after
// every transition.
package viewstate

import (
	"context"
	"errors"
	"sync"

	"hemisphere-atlas/internal/models"
)

var ErrInvalidOption = errors.New("option index out of range")

// CaseStudyRequester is the slice of the generation client the quiz needs.
type CaseStudyRequester interface {
	RequestCaseStudy(ctx context.Context) (*models.CaseStudy, error)
}

type QuizMachine struct {
	client   CaseStudyRequester
	observer func(QuizView)

	mu                 sync.Mutex
	status             models.LoadingState
	caseStudy          *models.CaseStudy
	selectedOption     *int
	explanationVisible bool
	seq                uint64
	mounted            bool
}

// NewQuizMachine starts in IDLE. observer may be nil.
func NewQuizMachine(client CaseStudyRequester, observer func(QuizView)) *QuizMachine {
	return &QuizMachine{
		client:   client,
		observer: observer,
		status:   models.StatusIdle,
	}
}

// Mount begins the initial load the first time it is called.
func (m *QuizMachine) Mount() (uint64, bool) {
	m.mu.Lock()
	if m.mounted {
		m.mu.Unlock()
		return 0, false
	}
	m.mounted = true
	m.mu.Unlock()

	return m.Begin(), true
}

// Begin clears the selection, enters LOADING and returns the sequence number
// the matching Resolve or Fail must carry.
func (m *QuizMachine) Begin() uint64 {
	m.mu.Lock()
	m.mounted = true
	m.seq++
	seq := m.seq
	m.selectedOption = nil
	m.explanationVisible = false
	m.status = models.StatusLoading
	m.notifyLocked()
	m.mu.Unlock()

	return seq
}

// Resolve performs the request started by Begin. A completion for anything
// but the latest request is dropped.
func (m *QuizMachine) Resolve(ctx context.Context, seq uint64) error {
	cs, err := m.client.RequestCaseStudy(ctx)
	m.complete(seq, cs, err)
	return err
}

// Fail resolves a request that never reached the generation client.
func (m *QuizMachine) Fail(seq uint64, err error) {
	m.complete(seq, nil, err)
}

// NewCase runs a full request cycle synchronously.
func (m *QuizMachine) NewCase(ctx context.Context) error {
	return m.Resolve(ctx, m.Begin())
}

func (m *QuizMachine) complete(seq uint64, cs *models.CaseStudy, err error) {
	m.mu.Lock()
	if seq != m.seq {
		m.mu.Unlock()
		return
	}
	if err != nil {
		m.status = models.StatusError
	} else {
		m.caseStudy = cs
		m.status = models.StatusSuccess
	}
	m.notifyLocked()
	m.mu.Unlock()
}

// Select commits the first answer for the current case. It reports false
// when nothing changed: no case shown yet or an answer already committed.
func (m *QuizMachine) Select(idx int) (bool, error) {
	m.mu.Lock()
	if m.status != models.StatusSuccess || m.caseStudy == nil || m.selectedOption != nil {
		m.mu.Unlock()
		return false, nil
	}
	if idx < 0 || idx >= len(m.caseStudy.Options) {
		m.mu.Unlock()
		return false, ErrInvalidOption
	}
	m.selectedOption = &idx
	m.explanationVisible = true
	m.notifyLocked()
	m.mu.Unlock()

	return true, nil
}

func (m *QuizMachine) Status() models.LoadingState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *QuizMachine) View() QuizView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewLocked()
}

// Peek calls fn with the current view while holding the lock, so fn is
// ordered with observer notifications. fn must not call back into the machine.
func (m *QuizMachine) Peek(fn func(QuizView)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.viewLocked())
}

// Mounted reports whether the initial load has been started.
func (m *QuizMachine) Mounted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mounted
}

func (m *QuizMachine) viewLocked() QuizView {
	return ProjectQuiz(QuizState{
		Status:             m.status,
		CaseStudy:          m.caseStudy,
		SelectedOption:     m.selectedOption,
		ExplanationVisible: m.explanationVisible,
	})
}

// notifyLocked runs the observer under the lock so views are delivered in
// transition order. Observers must not call back into the machine.
func (m *QuizMachine) notifyLocked() {
	if m.observer != nil {
		m.observer(m.viewLocked())
	}
}
