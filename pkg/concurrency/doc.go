/*
Package concurrency bounds how many tasks execute at once and queues
the overflow by risk.

The Controller is the only component holding mutable cross-task
runtime state: the slot table, the wait queue, and the slot id
counter, all guarded by one mutex. Admission itself rides a counting
semaphore (a buffered channel of capacity max_parallel), so
ActiveCount can never exceed the limit no matter how many goroutines
race Acquire.

# Slots

Acquire is non-blocking: it returns a Slot on success and nil on
saturation, never waits. Each slot records its task, start time, and a
deadline of now plus the configured timeout. Slot ids are monotonic
and never reused, so audit entries and logs always name a unique
admission. Release returns capacity for an abandoned slot; Complete
does the same while marking the slot finished. CheckTimeouts sweeps
the table each loop cycle and forcibly releases slots past deadline,
returning the task ids so the loop can mark them failed.

# Wait Queue

Enqueue parks a task with its composite risk score, appending a
concurrency_queued audit entry that records the risk and the 1-based
queue position. The queue is kept in descending risk order with stable
placement for equal risks: the most dangerous work is admitted first,
and ties resolve by arrival. Dequeue pops the head; Queued returns a
snapshot for the metrics collector.

# Usage

	slot := controller.Acquire(name)
	if slot == nil {
		controller.Enqueue(name, score.Composite)
		return
	}
	defer controller.Complete(slot.ID)
	// ... execute under the slot ...
*/
package concurrency
