/*
Package ports defines the driven ports (interfaces) for the chatflow engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various storage backends, chat platforms and template
engines.

# Key Interfaces

  - KVStore: the persistence gateway for runs, participants and channel sessions.
  - Platform: message sending plus user and room lookups.
  - Subscriber: adapters that deliver inbound conversational events.
  - Renderer: the render(template, data) capability used for step templates.
*/
package ports
