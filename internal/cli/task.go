package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/taskbay/taskbay/internal/app/platform"
	"github.com/taskbay/taskbay/internal/domain"
)

func init() {
	taskCmd.PersistentFlags().StringVar(&actAs, "as", "", "Address to act as")

	taskAddCmd.Flags().StringVar(&addTitle, "title", "", "Task title")
	taskAddCmd.Flags().StringVar(&addDescription, "description", "", "Task description")
	taskAddCmd.Flags().StringVar(&addType, "type", "fcfs", "Assignment: fcfs or author")
	taskAddCmd.Flags().Int64Var(&addReward, "reward", 0, "Reward paid to the worker")
	taskAddCmd.Flags().Int64Var(&addValue, "value", 0, "Attached deposit (default: reward + fee)")

	taskCmd.AddCommand(
		taskAddCmd, taskListCmd, taskShowCmd,
		taskApplyCmd, taskAssignCmd, taskUnassignCmd,
		taskSubmitCmd, taskChangeCmd, taskCompleteCmd, taskPayCmd,
		taskDeleteCmd,
	)
	rootCmd.AddCommand(taskCmd)
}

var (
	addTitle       string
	addDescription string
	addType        string
	addReward      int64
	addValue       int64
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Post, work on, and settle tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Post a task, escrowing the reward",
	Args:  cobra.NoArgs,
	RunE:  runTaskAdd,
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	actor, err := caller()
	if err != nil {
		return err
	}
	typ, err := parseTaskType(addType)
	if err != nil {
		return err
	}

	ctx := context.Background()
	l, err := openLocal(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	value := addValue
	if !cmd.Flags().Changed("value") {
		if value, err = l.engine.RequiredDeposit(addReward); err != nil {
			return err
		}
	}
	t, err := l.engine.AddTask(ctx, actor, platform.NewTask{
		Title:       addTitle,
		Description: addDescription,
		Type:        typ,
		Reward:      addReward,
	}, value)
	if err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "Created task #%d (reward %d escrowed, fee %d)\n", t.ID, t.Escrowed, t.Fee)
	return nil
}

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Args:    cobra.NoArgs,
	RunE:    runTaskList,
}

func runTaskList(cmd *cobra.Command, args []string) error {
	l, err := openLocal(context.Background())
	if err != nil {
		return err
	}
	defer l.Close()

	tasks := l.engine.GetAllTasks()
	if len(tasks) == 0 {
		fmt.Fprintln(out(cmd), "No tasks. Run 'taskbay task add' to post one.")
		return nil
	}

	w := tabwriter.NewWriter(out(cmd), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tTYPE\tSTATUS\tREWARD\tASSIGNEE")
	for _, t := range tasks {
		assignee := "-"
		if t.IsAssigned() {
			assignee = string(t.Assignee)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n", t.ID, t.Title, t.Type, t.Status, t.Reward, assignee)
	}
	return w.Flush()
}

var taskShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a task; with --as, also the caller's role and actions",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	l, err := openLocal(context.Background())
	if err != nil {
		return err
	}
	defer l.Close()

	t, err := l.engine.GetTask(id)
	if err != nil {
		return err
	}
	printTask(out(cmd), t)

	if actAs != "" {
		who := domain.Address(actAs)
		actions, err := l.engine.ActionsFor(id, who)
		if err != nil {
			return err
		}
		fmt.Fprintf(out(cmd), "Role:        %s\n", domain.RoleOf(t, who))
		if len(actions) == 0 {
			fmt.Fprintln(out(cmd), "Actions:     none")
		} else {
			fmt.Fprintf(out(cmd), "Actions:     %s\n", strings.Join(actions, ", "))
		}
	}
	return nil
}

// ─── Lifecycle Operations ───────────────────────────────────────────────────

// taskOp runs a lifecycle operation on args[0] as --as and reports the
// resulting status.
func taskOp(verb string, op func(ctx context.Context, e *platform.Engine, actor domain.Address, id uint64, args []string) (*domain.Task, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		actor, err := caller()
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx := context.Background()
		l, err := openLocal(ctx)
		if err != nil {
			return err
		}
		defer l.Close()

		t, err := op(ctx, l.engine, actor, id, args[1:])
		if err != nil {
			return err
		}
		fmt.Fprintf(out(cmd), "Task #%d %s (status %s)\n", t.ID, verb, t.Status)
		return nil
	}
}

var taskApplyCmd = &cobra.Command{
	Use:   "apply ID",
	Short: "Apply for a task",
	Args:  cobra.ExactArgs(1),
	RunE: taskOp("applied", func(ctx context.Context, e *platform.Engine, actor domain.Address, id uint64, _ []string) (*domain.Task, error) {
		return e.ApplyForTask(ctx, actor, id)
	}),
}

var taskAssignCmd = &cobra.Command{
	Use:   "assign ID CANDIDATE",
	Short: "Assign an author-selected task to a candidate",
	Args:  cobra.ExactArgs(2),
	RunE: taskOp("assigned", func(ctx context.Context, e *platform.Engine, actor domain.Address, id uint64, rest []string) (*domain.Task, error) {
		return e.AssignTask(ctx, actor, id, domain.Address(rest[0]))
	}),
}

var taskUnassignCmd = &cobra.Command{
	Use:   "unassign ID",
	Short: "Return an assigned task to open",
	Args:  cobra.ExactArgs(1),
	RunE: taskOp("unassigned", func(ctx context.Context, e *platform.Engine, actor domain.Address, id uint64, _ []string) (*domain.Task, error) {
		return e.UnassignTask(ctx, actor, id)
	}),
}

var taskSubmitCmd = &cobra.Command{
	Use:   "submit ID RESULT",
	Short: "Submit a result for review",
	Args:  cobra.ExactArgs(2),
	RunE: taskOp("submitted", func(ctx context.Context, e *platform.Engine, actor domain.Address, id uint64, rest []string) (*domain.Task, error) {
		return e.SubmitResult(ctx, actor, id, rest[0])
	}),
}

var taskChangeCmd = &cobra.Command{
	Use:   "change ID MESSAGE",
	Short: "Request changes to a submission",
	Args:  cobra.ExactArgs(2),
	RunE: taskOp("sent back", func(ctx context.Context, e *platform.Engine, actor domain.Address, id uint64, rest []string) (*domain.Task, error) {
		return e.RequestChange(ctx, actor, id, rest[0])
	}),
}

var taskCompleteCmd = &cobra.Command{
	Use:   "complete ID RATING",
	Short: "Approve a submission, release the reward, and rate the worker (0-5)",
	Args:  cobra.ExactArgs(2),
	RunE: taskOp("completed", func(ctx context.Context, e *platform.Engine, actor domain.Address, id uint64, rest []string) (*domain.Task, error) {
		score, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("rating %q is not a number: %w", rest[0], domain.ErrInvalidRating)
		}
		return e.CompleteTask(ctx, actor, id, score)
	}),
}

var taskPayCmd = &cobra.Command{
	Use:   "pay ID",
	Short: "Collect the reward after the review window elapses",
	Args:  cobra.ExactArgs(1),
	RunE: taskOp("paid out", func(ctx context.Context, e *platform.Engine, actor domain.Address, id uint64, _ []string) (*domain.Task, error) {
		return e.RequestPayment(ctx, actor, id)
	}),
}

var taskDeleteCmd = &cobra.Command{
	Use:     "delete ID",
	Aliases: []string{"rm"},
	Short:   "Delete an open task and refund the reward",
	Args:    cobra.ExactArgs(1),
	RunE: taskOp("deleted", func(ctx context.Context, e *platform.Engine, actor domain.Address, id uint64, _ []string) (*domain.Task, error) {
		return e.DeleteTask(ctx, actor, id)
	}),
}
