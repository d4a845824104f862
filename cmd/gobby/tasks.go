package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Zeeeepa/gobby-sub011/pkg/models"
)

var (
	tasksParent      string
	tasksDescription string
	tasksDependsOn   []string
	tasksPriority    int
	tasksBranch      string
	tasksStatus      string
	tasksJSON        bool
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage the task backlog",
	Long: `Manage the tasks the orchestrator dispatches.

Tasks form a tree via --parent and a dependency graph via --depends-on.
A task becomes ready once it is open and every dependency is closed;
'gobby orchestrate run' launches agents for the ready descendants of a
parent task.`,
}

var tasksAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksAdd,
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Args:  cobra.NoArgs,
	RunE:  runTasksList,
}

var tasksCloseCmd = &cobra.Command{
	Use:   "close <id>",
	Short: "Mark a task closed",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksClose,
}

func init() {
	tasksAddCmd.Flags().StringVarP(&tasksParent, "parent", "p", "", "Parent task ID")
	tasksAddCmd.Flags().StringVarP(&tasksDescription, "description", "d", "", "Longer task description")
	tasksAddCmd.Flags().StringSliceVar(&tasksDependsOn, "depends-on", nil, "Task IDs that must close first")
	tasksAddCmd.Flags().IntVar(&tasksPriority, "priority", 0, "Dispatch priority (lower runs first)")
	tasksAddCmd.Flags().StringVar(&tasksBranch, "branch", "", "Override the derived branch name")
	tasksListCmd.Flags().StringVar(&tasksStatus, "status", "", "Filter by status: open, in_progress, or closed")
	tasksListCmd.Flags().BoolVar(&tasksJSON, "json", false, "Emit JSON instead of text")
	tasksCmd.AddCommand(tasksAddCmd)
	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksCloseCmd)
}

func runTasksAdd(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	if tasksParent != "" {
		if _, err := eng.db.GetTask(tasksParent); err != nil {
			return fmt.Errorf("parent task: %w", err)
		}
	}
	for _, dep := range tasksDependsOn {
		if _, err := eng.db.GetTask(dep); err != nil {
			return fmt.Errorf("dependency %s: %w", dep, err)
		}
	}

	task := &models.Task{
		ID:          uuid.New().String(),
		ParentID:    tasksParent,
		Title:       args[0],
		Description: tasksDescription,
		Status:      models.TaskStatusOpen,
		Priority:    tasksPriority,
		DependsOn:   tasksDependsOn,
		Branch:      tasksBranch,
		CreatedAt:   time.Now(),
	}
	if err := eng.db.CreateTask(task); err != nil {
		return err
	}
	fmt.Printf("Created task #%d: %s\n  id: %s\n", task.Seq, task.Title, task.ID)
	return nil
}

func runTasksList(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	var filter *models.TaskStatus
	if tasksStatus != "" {
		status := models.TaskStatus(tasksStatus)
		if !status.Valid() {
			return fmt.Errorf("unknown status %q: want open, in_progress, or closed", tasksStatus)
		}
		filter = &status
	}

	tasks, err := eng.db.ListTasks(filter)
	if err != nil {
		return err
	}
	if tasksJSON {
		return json.NewEncoder(os.Stdout).Encode(tasks)
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}

	for _, t := range tasks {
		fmt.Printf("  #%-4d %-12s %s\n", t.Seq, t.Status, t.Title)
		fmt.Printf("        id: %s\n", t.ID)
		if t.ParentID != "" {
			fmt.Printf("        parent: %s\n", t.ParentID)
		}
		if len(t.DependsOn) > 0 {
			fmt.Printf("        depends on: %s\n", strings.Join(t.DependsOn, ", "))
		}
	}
	return nil
}

func runTasksClose(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	task, err := eng.db.GetTask(args[0])
	if err != nil {
		return err
	}
	if task.Status == models.TaskStatusClosed {
		fmt.Printf("Task #%d is already closed.\n", task.Seq)
		return nil
	}
	if err := eng.db.UpdateTaskStatus(task.ID, models.TaskStatusClosed); err != nil {
		return err
	}
	fmt.Printf("Closed task #%d: %s\n", task.Seq, task.Title)
	return nil
}
