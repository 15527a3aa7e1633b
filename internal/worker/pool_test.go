package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"hemisphere-atlas/internal/logger"
	"hemisphere-atlas/internal/models"
	"hemisphere-atlas/internal/session"
)

type blockingGenerator struct {
	release chan struct{}
	err     error
}

func (g *blockingGenerator) wait(ctx context.Context) error {
	if g.release == nil {
		return nil
	}
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *blockingGenerator) RequestCaseStudy(ctx context.Context) (*models.CaseStudy, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	if g.err != nil {
		return nil, g.err
	}
	return &models.CaseStudy{
		ID:          uuid.New(),
		Scenario:    "s",
		Question:    "q",
		Options:     []string{"a", "b", "c", "d"},
		Explanation: "e",
	}, nil
}

func (g *blockingGenerator) RequestDiseaseSet(ctx context.Context) ([]models.Disease, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	if g.err != nil {
		return nil, g.err
	}
	return []models.Disease{
		{Name: "a", Description: "d", Hemisphere: models.HemisphereLeft, Symptoms: []string{"x"}},
		{Name: "b", Description: "d", Hemisphere: models.HemisphereRight, Symptoms: []string{"x"}},
		{Name: "c", Description: "d", Hemisphere: models.HemisphereBilateral, Symptoms: []string{"x"}},
	}, nil
}

func waitForStatus(t *testing.T, get func() models.LoadingState, want models.LoadingState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if get() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s, last %s", want, get())
}

func TestPool_ResolvesJobsForSession(t *testing.T) {
	store := session.NewStore(&blockingGenerator{}, nil, time.Hour, logger.Nop())
	pool := NewPool(store, logger.Nop(), 2, 8)
	pool.Start()
	defer pool.Stop()

	sess, _ := store.GetOrCreate(uuid.New())

	quizSeq := sess.Quiz.Begin()
	gallerySeq := sess.Gallery.Begin()
	if err := pool.Submit(models.Job{SessionID: sess.ID, Type: models.JobTypeCaseStudy, Seq: quizSeq}); err != nil {
		t.Fatalf("submit quiz job: %v", err)
	}
	if err := pool.Submit(models.Job{SessionID: sess.ID, Type: models.JobTypeDiseaseSet, Seq: gallerySeq}); err != nil {
		t.Fatalf("submit gallery job: %v", err)
	}

	waitForStatus(t, sess.Quiz.Status, models.StatusSuccess)
	waitForStatus(t, sess.Gallery.Status, models.StatusSuccess)
}

func TestPool_FailedJobLeavesWidgetInError(t *testing.T) {
	store := session.NewStore(&blockingGenerator{err: errors.New("permission denied")}, nil, time.Hour, logger.Nop())
	pool := NewPool(store, logger.Nop(), 1, 4)
	pool.Start()
	defer pool.Stop()

	sess, _ := store.GetOrCreate(uuid.New())
	seq := sess.Gallery.Begin()
	pool.Submit(models.Job{SessionID: sess.ID, Type: models.JobTypeDiseaseSet, Seq: seq})

	waitForStatus(t, sess.Gallery.Status, models.StatusError)
}

func TestPool_SubmitQueueFull(t *testing.T) {
	store := session.NewStore(&blockingGenerator{}, nil, time.Hour, logger.Nop())
	pool := NewPool(store, logger.Nop(), 1, 1)

	// workers not started, so the single slot stays occupied
	if err := pool.Submit(models.Job{Type: models.JobTypeCaseStudy}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := pool.Submit(models.Job{Type: models.JobTypeCaseStudy}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestPool_StopCancelsInFlight(t *testing.T) {
	gen := &blockingGenerator{release: make(chan struct{})}
	store := session.NewStore(gen, nil, time.Hour, logger.Nop())
	pool := NewPool(store, logger.Nop(), 1, 1)
	pool.Start()

	sess, _ := store.GetOrCreate(uuid.New())
	seq := sess.Quiz.Begin()
	pool.Submit(models.Job{SessionID: sess.ID, Type: models.JobTypeCaseStudy, Seq: seq})

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return")
	}

	if err := pool.Submit(models.Job{Type: models.JobTypeCaseStudy}); !errors.Is(err, ErrPoolStopped) {
		t.Fatalf("expected ErrPoolStopped, got %v", err)
	}
}

func TestPool_MissingSessionIsSkipped(t *testing.T) {
	store := session.NewStore(&blockingGenerator{}, nil, time.Hour, logger.Nop())
	pool := NewPool(store, logger.Nop(), 1, 1)

	// runs inline, must not panic
	pool.process(0, models.Job{SessionID: uuid.New(), Type: models.JobTypeCaseStudy})
}
