// Package agentloop implements the desktop agent control loop.
//
// A language model (the planner) is given a task and a fixed catalog of
// seven tools: run_command, read_file, write_file, list_directory,
// get_current_directory, change_directory and task_complete. The loop calls
// the planner with the full conversation, runs the tools it asks for, feeds
// the results back and repeats until the planner signals completion or one
// of the loop's bounds is reached.
//
// The loop uses the unifiedllm package's low-level Client.Complete()
// method directly; any type with the same method satisfies Planner.
//
// # Architecture
//
// The package is organized around these core concepts:
//
//   - Agent / Run: the state machine. A Run produces Steps lazily as an
//     iter.Seq, optionally mirrored to a callback, and always ends with
//     exactly one complete or error step.
//   - Session: the working directory, environment and command history of
//     one run. Every run starts from a fresh Session.
//   - Dispatcher: validates tool names and arguments against the catalog
//     and runs the matching handler. Tool failures come back as failed
//     ToolResults, never as errors or panics.
//   - PathResolver: expands "~", known folder aliases and relative paths
//     against the session working directory.
//
// # Quick Start
//
//	agent := agentloop.NewAgent(client, agentloop.DefaultConfig())
//	run, err := agent.Run(ctx, agentloop.RunRequest{
//	    Task:  "Create a hello.txt file on my Desktop",
//	    Model: "gpt-4o",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for step := range run.Steps() {
//	    fmt.Printf("[%d %s] %s\n", step.Number, step.Kind, step.Content)
//	}
package agentloop
