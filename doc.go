/*
Package chatflow runs declarative conversational workflows inside a chat bot.

A workflow is a YAML document naming a sequence of steps. Each step sends a
message (text, select, yes/no, task or note), calls a custom action supplied
by the host, or does nothing; the user's reply is recorded under the step's
id and made available to later steps through Handlebars templates.

# Workflows

	version: 1.0.0
	name: onboarding
	on:
	  - workflow_dispatch
	  - text: {match: "^onboard"}
	steps:
	  - id: name
	    action: daab:message:text
	    with: {text: "What is your name?"}
	  - id: dept
	    action: daab:message:select
	    with:
	      question: "Hi {{name.response}}, which department?"
	      options: [Sales, Engineering]
	  - action: custom:notify_hr
	    with: |
	      user: "{{name.response}}"
	      dept: {{dept.response}}

The "on" section decides which events start a run. Workflows triggered by
workflow_dispatch are listed by the /list command.

# Runs

Every event is routed by Bot.Handle. A user bound to a run delivers replies
to it; otherwise the first workflow whose trigger fires starts a new run.
Run state is persisted through a ports.KVStore after every step, so a bot
process can be restarted between any two events.

# Usage

	bot, err := chatflow.New("./workflows", platform, store,
		chatflow.WithLogger(logger),
		chatflow.WithAction("notify_hr", notifyHR),
	)
	if err != nil {
		log.Fatal(err)
	}
	if err := bot.Listen(ctx, subscriber); err != nil {
		log.Fatal(err)
	}
*/
package chatflow
