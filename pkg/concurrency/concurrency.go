package concurrency

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/types"
)

// QueuedTask is one waiter in the risk-ordered queue.
type QueuedTask struct {
	TaskID string
	Risk   float64
}

// Controller bounds parallel task execution. A buffered channel acts
// as the counting semaphore; a single mutex guards the slot table,
// the wait queue, and the slot id counter. Slot ids are monotonic and
// never reused.
type Controller struct {
	timeout  time.Duration
	auditLog *audit.Log
	now      func() time.Time

	sem chan struct{}

	mu         sync.Mutex
	active     map[int]*types.Slot
	queue      []QueuedTask
	nextSlotID int
}

// New creates a controller admitting at most maxParallel tasks, each
// with a wall-clock deadline of timeoutMinutes from admission.
func New(maxParallel int, timeoutMinutes float64, auditLog *audit.Log) *Controller {
	return &Controller{
		timeout:  time.Duration(timeoutMinutes * float64(time.Minute)),
		auditLog: auditLog,
		now:      time.Now,
		sem:      make(chan struct{}, maxParallel),
		active:   make(map[int]*types.Slot),
	}
}

// Acquire attempts to claim an execution slot without blocking. It
// returns nil when capacity is exhausted.
func (c *Controller) Acquire(taskID string) *types.Slot {
	select {
	case c.sem <- struct{}{}:
	default:
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSlotID
	c.nextSlotID++

	now := c.now()
	slot := &types.Slot{
		ID:        id,
		TaskID:    taskID,
		StartedAt: now,
		TimeoutAt: now.Add(c.timeout),
		Status:    types.SlotActive,
	}
	c.active[id] = slot
	return slot
}

// Release frees a slot without judging the outcome. Unknown slot ids
// are a no-op.
func (c *Controller) Release(slotID int) {
	c.free(slotID, types.SlotReleased)
}

// Complete marks a slot's work finished and frees it.
func (c *Controller) Complete(slotID int) {
	c.free(slotID, types.SlotCompleted)
}

func (c *Controller) free(slotID int, status types.SlotStatus) {
	c.mu.Lock()
	slot, ok := c.active[slotID]
	if ok {
		delete(c.active, slotID)
		slot.Status = status
	}
	c.mu.Unlock()

	if ok {
		<-c.sem
	}
}

// Enqueue inserts a waiter, keeping the queue in descending risk
// order. Equal risks keep their arrival order.
func (c *Controller) Enqueue(taskID string, risk float64) {
	c.mu.Lock()
	c.queue = append(c.queue, QueuedTask{TaskID: taskID, Risk: risk})
	sort.SliceStable(c.queue, func(i, j int) bool {
		return c.queue[i].Risk > c.queue[j].Risk
	})
	position := -1
	for i, q := range c.queue {
		if q.TaskID == taskID {
			position = i + 1
			break
		}
	}
	c.mu.Unlock()

	c.auditLog.Append(audit.OpConcurrencyQueued, taskID, "concurrency_controller", "",
		audit.OutcomeSuccess,
		fmt.Sprintf("risk_score=%.3f queue_position=%d", risk, position))
}

// Dequeue removes and returns the highest-risk waiter.
func (c *Controller) Dequeue() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return "", false
	}
	taskID := c.queue[0].TaskID
	c.queue = c.queue[1:]
	return taskID, true
}

// ActiveCount returns the number of admitted tasks.
func (c *Controller) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// Queued returns a copy of the wait queue in dequeue order.
func (c *Controller) Queued() []QueuedTask {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]QueuedTask, len(c.queue))
	copy(out, c.queue)
	return out
}

// CheckTimeouts releases every slot whose deadline has passed and
// returns the task ids that lost their slot.
func (c *Controller) CheckTimeouts() []string {
	now := c.now()

	c.mu.Lock()
	var expired []*types.Slot
	for _, slot := range c.active {
		if !now.Before(slot.TimeoutAt) {
			expired = append(expired, slot)
		}
	}
	c.mu.Unlock()

	taskIDs := make([]string, 0, len(expired))
	for _, slot := range expired {
		c.free(slot.ID, types.SlotTimedOut)
		taskIDs = append(taskIDs, slot.TaskID)
		logger := log.WithComponent("concurrency")
		logger.Warn().
			Str("task_id", slot.TaskID).
			Int("slot_id", slot.ID).
			Msg("task timed out, slot released")
	}
	return taskIDs
}
