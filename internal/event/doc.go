/*
Package event provides a pub/sub event system for the orchestrator.

Publishers (the process supervisor, the reload controller, the change watcher
glue in the server command) emit lifecycle events; subscribers react without
depending on the publisher.

# Architecture

Subscribers registered with Subscribe are called directly,
which preserves the concrete Data type. Every event is additionally mirrored
as a JSON-encoded watermill message on JournalTopic of an in-memory
gochannel, and Journal exposes that stream for consumers that want a
decoupled, ordered feed (the CLI uses it for debug logging). The server command subscribes to
reload.failed to tell the operator a replacement server did not start.

There is no package-level bus: callers create one with NewBus and pass it
explicitly. A nil *Bus is valid and drops every event.

# Event Types

Process Events:
  - process.started: a child process was launched (ProcessData)
  - process.exited: a child process exited or was terminated (ProcessData)

Reload Events:
  - reload.started: a change triggered a server restart (ReloadData)
  - reload.completed: the replacement server is running (ReloadData)
  - reload.failed: the replacement could not be started (ReloadData)

File Events:
  - file.changed: a watched source file was created or modified (FileChangedData)

# Usage

	bus := event.NewBus()
	defer bus.Close()

	unsub := bus.Subscribe(event.ProcessExited, func(e event.Event) {
		data := e.Data.(event.ProcessData)
		fmt.Printf("%s exited with %d\n", data.Name, data.ExitCode)
	})
	defer unsub()

Publish delivers on a goroutine per subscriber.
*/
package event
