package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var (
	workflowSession string
	workflowJSON    bool
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Manage per-session workflow instances",
	Long: `Manage the workflow instances of one session.

Workflows are defined in YAML under the definition directories and come
to life per session: activating creates (or re-enables) the session's
instance, ending disables it and clears the session variables the
definition declared.

The session defaults to $GOBBY_SESSION_ID, which gobby sets for every
agent it spawns.`,
}

var workflowActivateCmd = &cobra.Command{
	Use:   "activate <name>",
	Short: "Enable a workflow for a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowActivate,
}

var workflowEndCmd = &cobra.Command{
	Use:   "end [name]",
	Short: "Disable a workflow and clear its declared session variables",
	Long: `Disable a workflow instance for a session.

Without a name, the most recently activated enabled workflow is ended.
Only the session variables the definition declares are removed; anything
other workflows wrote stays.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWorkflowEnd,
}

var workflowStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a session's workflow instances and variables",
	Args:  cobra.NoArgs,
	RunE:  runWorkflowStatus,
}

var workflowListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loadable workflow definitions",
	Args:  cobra.NoArgs,
	RunE:  runWorkflowList,
}

func init() {
	workflowCmd.PersistentFlags().StringVarP(&workflowSession, "session", "s", "", "Session ID (defaults to $GOBBY_SESSION_ID)")
	workflowStatusCmd.Flags().BoolVar(&workflowJSON, "json", false, "Emit JSON instead of text")
	workflowCmd.AddCommand(workflowActivateCmd)
	workflowCmd.AddCommand(workflowEndCmd)
	workflowCmd.AddCommand(workflowStatusCmd)
	workflowCmd.AddCommand(workflowListCmd)
}

// requireSession resolves the session ID from the flag or environment.
func requireSession() (string, error) {
	if workflowSession != "" {
		return workflowSession, nil
	}
	if env := os.Getenv("GOBBY_SESSION_ID"); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("no session given: pass --session or set GOBBY_SESSION_ID")
}

func runWorkflowActivate(cmd *cobra.Command, args []string) error {
	sessionID, err := requireSession()
	if err != nil {
		return err
	}
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	inst, err := eng.workflows.Activate(cmd.Context(), sessionID, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Activated workflow %s for session %s (step: %s)\n", inst.WorkflowName, sessionID, inst.CurrentStep)
	return nil
}

func runWorkflowEnd(cmd *cobra.Command, args []string) error {
	sessionID, err := requireSession()
	if err != nil {
		return err
	}
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	inst, err := eng.workflows.End(cmd.Context(), sessionID, name)
	if err != nil {
		return err
	}
	fmt.Printf("Ended workflow %s for session %s\n", inst.WorkflowName, sessionID)
	return nil
}

func runWorkflowStatus(cmd *cobra.Command, args []string) error {
	sessionID, err := requireSession()
	if err != nil {
		return err
	}
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	status, err := eng.workflows.Status(cmd.Context(), sessionID)
	if err != nil {
		return err
	}
	if workflowJSON {
		return json.NewEncoder(os.Stdout).Encode(status)
	}

	fmt.Printf("Session: %s\n", sessionID)
	if len(status.Workflows) == 0 {
		fmt.Println("  No workflows have been activated.")
	}
	for _, wf := range status.Workflows {
		enabled := "enabled"
		if !wf.Enabled {
			enabled = "ended"
		}
		fmt.Printf("  %s: %s, step %s, priority %d\n", wf.Name, enabled, wf.CurrentStep, wf.Priority)
		for _, key := range sortedVarKeys(wf.Variables) {
			fmt.Printf("    %s: %v\n", key, wf.Variables[key])
		}
	}

	if len(status.SessionVariables) > 0 {
		fmt.Println("Session variables:")
		for _, key := range sortedVarKeys(status.SessionVariables) {
			fmt.Printf("  %s: %v\n", key, status.SessionVariables[key])
		}
	}
	return nil
}

func runWorkflowList(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	set := eng.source.Definitions()
	if set.Len() == 0 {
		fmt.Println("No workflow definitions found.")
		fmt.Printf("Searched:\n  %s\n", strings.Join(workflowDirs(eng.root, eng.cfg), "\n  "))
		return nil
	}

	fmt.Printf("Workflow definitions (%d):\n", set.Len())
	for _, name := range set.Names() {
		def, _ := set.Get(name)
		detail := def.Kind
		if len(def.Steps) > 0 {
			detail = fmt.Sprintf("%s, steps: %s", def.Kind, strings.Join(def.Steps, " > "))
		}
		fmt.Printf("  %s (%s)\n", name, detail)
	}
	return nil
}

// sortedVarKeys returns map keys in sorted order for stable output.
func sortedVarKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
