// Package event provides a pub-sub event bus for decoupled inter-component
// communication in edgeshift.
//
// The device monitor, executor, dispatcher and sync coordinator never hold
// references to one another's callbacks. Producers publish on a shared [Bus]
// and consumers subscribe to the event types they care about.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Device:
//   - [ConnectivityChangedEvent]: the device went offline or came back online
//   - [DeviceUpdatedEvent]: a telemetry update was applied
//
// Tasks:
//   - [TaskStateChangedEvent]: a task moved between lifecycle states
//   - [TaskDispatchedEvent]: the dispatcher decided local or remote
//   - [CacheEvictedEvent]: a cache cleanup pass removed entries
//
// Sync:
//   - [SyncCompletedEvent]: the remote side acknowledged a batch
//   - [SyncFailedEvent]: a batch push failed and results stay pending
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called synchronously
// on the publishing goroutine and protected against panics; a panicking
// handler will not prevent other handlers from being called.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//
//	bus.Subscribe(event.TypeConnectivityChanged, func(e event.Event) {
//	    if ev := e.(event.ConnectivityChangedEvent); ev.Connected {
//	        go coordinator.Sync(ctx, "reconnect")
//	    }
//	})
//
//	bus.Publish(event.NewConnectivityChangedEvent(true, "wifi"))
package event
