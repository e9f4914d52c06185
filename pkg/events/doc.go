/*
Package events provides the in-memory broker for Hutch's pub/sub
messaging.

The events package implements a lightweight event bus for broadcasting
task lifecycle events to interested subscribers. It enables loose
coupling between the orchestrator loop and consumers like the
dashboard's activity feed.

# Architecture

Non-blocking pub/sub with buffered channels:

	Publisher → Event Channel (buffer: 100)
	     ↓
	Broadcast Loop
	     ↓
	Subscriber Channels (buffer: 50 each)

# Event Types

  - task_created: A watched file became a task in Needs_Action
  - plan_generated: The planner wrote a Plans/ entry for a task
  - task_completed: Execution finished successfully
  - task_failed: Execution failed beyond recovery
  - system: Loop-level happenings (startup, shutdown, heartbeat)

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			fmt.Printf("%s: %s\n", event.Type, event.Message)
		}
	}()

	broker.Publish(&events.Event{
		Type:    events.EventTaskCreated,
		TaskID:  "20260301-100000-report.md",
		Message: "task created from inbox/report.pdf",
	})

# Design Notes

Publish is fire-and-forget: it drops on a full buffer rather than
block the orchestrator loop, and slow subscribers skip events rather
than stall the broadcast. The append-only audit trail in pkg/audit is
the durable record; this broker only feeds live views.
*/
package events
