package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Zeeeepa/gobby-sub011/internal/hooks"
	"github.com/spf13/cobra"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Evaluate one lifecycle event from stdin",
	Long: `Evaluate a session lifecycle event against the active workflows.

Reads one JSON event on stdin and writes the JSON response to stdout.
This is the entry point platform hook adapters call on every event:

  echo '{"session_id":"s1","type":"user_prompt","prompt":"hi"}' | gobby hook

The response carries the aggregate decision (allow or block), the block
reason, and any injected context. Engine failures never block the
session: the event is allowed and the failure goes to stderr.`,
	Args: cobra.NoArgs,
	RunE: runHook,
}

func runHook(cmd *cobra.Command, args []string) error {
	var event hooks.Event
	if err := json.NewDecoder(os.Stdin).Decode(&event); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if event.SessionID == "" {
		return fmt.Errorf("event has no session_id")
	}
	if event.Type == "" {
		return fmt.Errorf("event has no type")
	}

	// Fail open. A broken engine must not wedge the session.
	resp := hooks.NewResponse()
	eng, err := openEngine()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gobby: %v\n", err)
		return writeResponse(resp)
	}
	defer eng.Close()

	evaluated, err := eng.evaluator.Evaluate(cmd.Context(), &event)
	if err != nil {
		eng.logger.Error("event evaluation failed",
			"session", event.SessionID, "event", event.Type, "error", err)
	} else {
		resp = evaluated
	}
	return writeResponse(resp)
}

func writeResponse(resp *hooks.Response) error {
	if err := json.NewEncoder(os.Stdout).Encode(resp); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}
