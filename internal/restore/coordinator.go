// Package restore runs the subprocess-backed restore pipeline as a
// single-slot asynchronous task and reports its one terminal result as an
// identity-tagged event.
package restore

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
)

// ErrAlreadyInProgress rejects a second restore while one is running.
// Restores are destructive and are never queued or superseded.
var ErrAlreadyInProgress = errors.New("a restore is already in progress")

// RunFunc invokes the external restore pipeline and returns its captured
// output. It is handed in at construction so the coordinator stays
// ignorant of how the pipeline is driven.
type RunFunc func(ctx context.Context, targetDB, dumpPath string) (string, error)

// Event is the single terminal event of a restore task.
type Event struct {
	TaskID uint64
	Output string
	Err    error
}

// Task is one restore handle. There is no cancellation: once pg_restore is
// running it goes to completion or external failure.
type Task struct {
	ID         uint64
	SourcePath string
	TargetDB   string
}

type Coordinator struct {
	run    RunFunc
	mu     sync.Mutex
	active *Task
	nextID uint64
	events chan Event
}

func NewCoordinator(run RunFunc) *Coordinator {
	return &Coordinator{run: run, events: make(chan Event, 1)}
}

func (c *Coordinator) Events() <-chan Event { return c.events }

// Start launches the restore of dumpPath into targetDB. It returns
// ErrAlreadyInProgress while a prior task has not reached its terminal
// event, leaving that task untouched.
func (c *Coordinator) Start(sourcePath, targetDB string) (*Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil, ErrAlreadyInProgress
	}

	c.nextID++
	task := &Task{ID: c.nextID, SourcePath: sourcePath, TargetDB: targetDB}
	c.active = task

	go func() {
		log.Info("restore started", "target", targetDB, "source", sourcePath)
		out, err := c.run(context.Background(), targetDB, sourcePath)
		if err != nil {
			log.Error("restore failed", "target", targetDB, "error", err)
		} else {
			log.Info("restore completed", "target", targetDB)
		}

		c.mu.Lock()
		c.active = nil
		c.mu.Unlock()

		c.events <- Event{TaskID: task.ID, Output: out, Err: err}
	}()

	return task, nil
}

// Active reports whether a restore is currently running.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}
