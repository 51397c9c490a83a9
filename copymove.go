package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/nollavik/watchsync/internal/api"
	"github.com/nollavik/watchsync/internal/lists"
	"github.com/nollavik/watchsync/internal/retry"
)

// Values for the --on-duplicate flag.
const (
	dupAsk    = "ask"
	dupSkip   = "skip"
	dupCancel = "cancel"
)

func newCopyCmd() *cobra.Command {
	var onDuplicate string

	cmd := &cobra.Command{
		Use:   "copy <movie|series> <id> <source-list> <target-list>",
		Short: "Copy an item to another list",
		Long: `Copy an item from one list to another. If the target already contains
the item, you are asked whether to skip the duplicate. While offline, the
copy is queued and synced later.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCopyMove(cmd, args, onDuplicate, false)
		},
	}

	cmd.Flags().StringVar(&onDuplicate, "on-duplicate", dupAsk, "duplicate handling: ask, skip, or cancel")

	return cmd
}

func newMoveCmd() *cobra.Command {
	var onDuplicate string

	cmd := &cobra.Command{
		Use:   "move <movie|series> <id> <source-list> <target-list>",
		Short: "Move an item to another list",
		Long: `Move an item from one list to another. If the target already contains
the item, you are asked whether to remove it from the source only. A
successful move can be undone for 10 seconds. While offline, the move is
queued and synced later.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCopyMove(cmd, args, onDuplicate, true)
		},
	}

	cmd.Flags().StringVar(&onDuplicate, "on-duplicate", dupAsk, "duplicate handling: ask, skip (remove from source), or cancel")

	return cmd
}

func runCopyMove(cmd *cobra.Command, args []string, onDuplicate string, move bool) error {
	itemType, itemID, err := parseItemArgs(args[:2])
	if err != nil {
		return err
	}

	sourceList, targetList := args[2], args[3]

	resolver, err := buildResolver(onDuplicate)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a := newApp(ctx)
	defer a.Close()

	svc := lists.NewService(
		a.client, a.client, a.producer, a.monitor,
		resolver,
		retry.NewController(a.logger),
		lists.NewUndoManager(a.logger),
		a.logger,
	)

	params := lists.Params{
		SourceList: sourceList,
		TargetList: targetList,
		Items:      []api.ItemRef{{ID: itemID, Type: itemType}},
	}

	var result lists.Result

	if move {
		result, err = svc.Move(ctx, params)
	} else {
		result, err = svc.Copy(ctx, params)
	}

	if err != nil {
		var retried bool

		retried, err = offerRetries(ctx, svc, err)
		if retried {
			result.Completed = len(params.Items)
		}
	}

	if err != nil {
		if errors.Is(err, lists.ErrCanceled) {
			statusf("Canceled.\n")
			return nil
		}

		return err
	}

	reportResult(result, move)

	if move && !result.Queued && result.Completed > 0 {
		offerUndo(ctx, svc)
	}

	return nil
}

// reportResult prints the success message with skip-duplicate accounting.
func reportResult(result lists.Result, move bool) {
	verb := "copied"
	if move {
		verb = "moved"
	}

	switch {
	case result.Queued:
		statusf("Operation queued — it will sync when the server is reachable.\n")
	case result.Skipped > 0:
		statusf("%d item(s) %s, %d duplicate(s) skipped.\n", result.Completed, verb, result.Skipped)
	default:
		statusf("%d item(s) %s.\n", result.Completed, verb)
	}
}

// offerRetries drives the interactive retry loop: while the controller is
// awaiting a choice, ask the user whether to retry. Each accepted retry
// waits the controller's backoff before re-attempting. Returns whether a
// retry ultimately succeeded.
func offerRetries(ctx context.Context, svc *lists.Service, err error) (bool, error) {
	ctrl := svc.Retrier()

	for err != nil && ctrl.State() == retry.AwaitingChoice {
		class := ctrl.LastClassification()
		remaining := ctrl.RemainingAttempts()

		statusf("Failed: %s\n", class.Message)

		if !confirm(fmt.Sprintf("Retry? (%d attempt(s) left)", remaining)) {
			ctrl.Dismiss()
			return false, err
		}

		err = ctrl.Retry(ctx)
	}

	return err == nil, err
}

// offerUndo keeps the process alive for the undo window when attached to a
// terminal: pressing Enter within 10 seconds reverses the move.
func offerUndo(ctx context.Context, svc *lists.Service) {
	if flagQuiet || !isatty.IsTerminal(os.Stdin.Fd()) {
		return
	}

	statusf("Press Enter within 10s to undo, or wait to keep the move.\n")

	pressed := make(chan struct{})

	go func() {
		reader := bufio.NewReader(os.Stdin)
		if _, err := reader.ReadString('\n'); err == nil {
			close(pressed)
		}
	}()

	select {
	case <-pressed:
		if err := svc.Undo(ctx); err != nil {
			if errors.Is(err, lists.ErrNothingToUndo) {
				statusf("Undo window expired.\n")
				return
			}

			statusf("Undo failed: %v\n", err)

			return
		}

		statusf("Move undone.\n")
	case <-ctx.Done():
	case <-time.After(lists.UndoWindow):
		statusf("Keeping the move.\n")
	}
}

// buildResolver maps the --on-duplicate flag to a resolver: interactive
// prompts by default, scripted answers for non-interactive use.
func buildResolver(onDuplicate string) (lists.Resolver, error) {
	switch onDuplicate {
	case dupAsk:
		return promptResolver{}, nil
	case dupSkip:
		return scriptedResolver{copyChoice: lists.ChoiceSkipDuplicates, moveChoice: lists.ChoiceRemoveFromSource}, nil
	case dupCancel:
		return scriptedResolver{copyChoice: lists.ChoiceCancel, moveChoice: lists.ChoiceCancel}, nil
	default:
		return nil, fmt.Errorf("--on-duplicate must be %s, %s, or %s", dupAsk, dupSkip, dupCancel)
	}
}

// promptResolver asks on the terminal.
type promptResolver struct{}

func (promptResolver) ResolveCopy(duplicates []api.ItemRef, targetList string) lists.Choice {
	statusf("%d item(s) already in %q.\n", len(duplicates), targetList)

	if confirm("Skip the duplicate(s) and continue?") {
		return lists.ChoiceSkipDuplicates
	}

	return lists.ChoiceCancel
}

func (promptResolver) ResolveMove(duplicates []api.ItemRef, targetList string) lists.Choice {
	statusf("%d item(s) already in %q.\n", len(duplicates), targetList)

	if confirm("Remove from the source list only, without re-adding to the target?") {
		return lists.ChoiceRemoveFromSource
	}

	return lists.ChoiceCancel
}

// scriptedResolver answers without prompting.
type scriptedResolver struct {
	copyChoice lists.Choice
	moveChoice lists.Choice
}

func (s scriptedResolver) ResolveCopy([]api.ItemRef, string) lists.Choice { return s.copyChoice }
func (s scriptedResolver) ResolveMove([]api.ItemRef, string) lists.Choice { return s.moveChoice }

// confirm asks a yes/no question on the terminal. Defaults to no; answers
// no when stdin is not a terminal so scripts never hang.
func confirm(question string) bool {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return false
	}

	fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)

	reader := bufio.NewReader(os.Stdin)

	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	answer = strings.ToLower(strings.TrimSpace(answer))

	return answer == "y" || answer == "yes"
}
