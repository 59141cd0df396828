// Package sidekick implements an agentic task-execution loop: a tool-capable
// worker model attempts a user task, requested tools are executed, and a judge
// model evaluates the latest answer against a success criterion, looping back
// to the worker with feedback until the criterion is met or user input is
// needed. Most applications interact with the library through:
//  1. config.Load() for the environment-driven configuration surface
//  2. session.NewManager() to own per-conversation sessions and resources
//  3. Session.RunTurn() to drive one full worker→tools→evaluator pass
//
// The flow package contains the state machine, invoke the retry layer around
// external model calls, tool the function-calling subsystem and built-in
// capabilities, and browser the chromedp-backed resource provider. All
// defaults are safe for local development; production deployments typically
// supply a structured logger and real provider credentials.
package sidekick

// Version is the current release of the sidekick module.
const Version = "0.1.0"
