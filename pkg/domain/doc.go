/*
Package domain contains the core types of the chatflow engine.

It has no dependencies on adapters: workflow documents (Workflow, Step,
TriggerMap), inbound conversational events (Event), the resolved actions a
step produces (MessageAction, CustomAction, NoopAction), and the persisted
state of runs, participants and channel sessions all live here, together
with the error taxonomy shared by every layer.
*/
package domain
