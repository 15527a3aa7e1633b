package viewstate

import (
	"context"
	"sync"

	"hemisphere-atlas/internal/models"
)

// DiseaseSetRequester is the slice of the generation client the gallery needs.
type DiseaseSetRequester interface {
	RequestDiseaseSet(ctx context.Context) ([]models.Disease, error)
}

// GalleryMachine drives the pathology generator. Unlike the quiz it never
// loads on its own.
type GalleryMachine struct {
	client   DiseaseSetRequester
	observer func(GalleryView)

	mu       sync.Mutex
	status   models.LoadingState
	diseases []models.Disease
	seq      uint64
}

func NewGalleryMachine(client DiseaseSetRequester, observer func(GalleryView)) *GalleryMachine {
	return &GalleryMachine{
		client:   client,
		observer: observer,
		status:   models.StatusIdle,
	}
}

func (m *GalleryMachine) Begin() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	m.status = models.StatusLoading
	m.notifyLocked()
	return m.seq
}

func (m *GalleryMachine) Resolve(ctx context.Context, seq uint64) error {
	diseases, err := m.client.RequestDiseaseSet(ctx)
	m.complete(seq, diseases, err)
	return err
}

func (m *GalleryMachine) Fail(seq uint64, err error) {
	m.complete(seq, nil, err)
}

func (m *GalleryMachine) Generate(ctx context.Context) error {
	return m.Resolve(ctx, m.Begin())
}

// complete replaces the list wholesale on success. On failure the previous
// list stays on display.
func (m *GalleryMachine) complete(seq uint64, diseases []models.Disease, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if seq != m.seq {
		return
	}
	if err != nil {
		m.status = models.StatusError
	} else {
		m.diseases = diseases
		m.status = models.StatusSuccess
	}
	m.notifyLocked()
}

func (m *GalleryMachine) Status() models.LoadingState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *GalleryMachine) View() GalleryView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewLocked()
}

func (m *GalleryMachine) Peek(fn func(GalleryView)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.viewLocked())
}

func (m *GalleryMachine) viewLocked() GalleryView {
	return ProjectGallery(GalleryState{Status: m.status, Diseases: m.diseases})
}

func (m *GalleryMachine) notifyLocked() {
	if m.observer != nil {
		m.observer(m.viewLocked())
	}
}
