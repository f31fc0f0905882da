package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	service "github.com/okian/area51/internal/app"
	"github.com/okian/area51/internal/domain/board"
	"github.com/okian/area51/internal/domain/ranking"
	"github.com/okian/area51/internal/domain/record"
	"github.com/okian/area51/internal/engine"
)

var errResetNotConfirmed = errors.New("reset needs --yes")

func newBoardCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Inspect and change the boards against the configured store",
	}
	cmd.AddCommand(
		newBoardShowCmd(f),
		newBoardAddCmd(f),
		newBoardDeleteCmd(f),
		newBoardMergeCmd(f),
		newBoardResetCmd(f),
	)
	return cmd
}

// withService starts a service over the configured store, runs fn and
// stops it again.
func withService(cmd *cobra.Command, f *rootFlags, fn func(ctx context.Context, svc *service.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := f.load(ctx, cmd, "warn")
	if err != nil {
		return err
	}
	svc := service.New(service.WithConfig(cfg))
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()
	return fn(ctx, svc)
}

func tagArg(args []string) (board.Tag, error) {
	return board.ParseTag(args[0])
}

func newBoardShowCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "show <hist|today>",
		Short:     "Print a board in rank order",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(board.Hist), string(board.Today)},
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := tagArg(args)
			if err != nil {
				return err
			}
			return withService(cmd, f, func(ctx context.Context, svc *service.Service) error {
				entries, err := svc.Board(ctx, tag)
				if err != nil {
					return err
				}
				return printEntries(cmd.OutOrStdout(), entries)
			})
		},
	}
}

func newBoardAddCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "add <hist|today> <name> <time>",
		Short: "Add a record",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := tagArg(args)
			if err != nil {
				return err
			}
			score, err := record.ParseTime(args[2])
			if err != nil {
				return err
			}
			return withService(cmd, f, func(ctx context.Context, svc *service.Service) error {
				res, err := svc.Add(ctx, tag, args[1], score, "")
				return printResult(cmd.OutOrStdout(), res, err)
			})
		},
	}
}

func newBoardDeleteCmd(f *rootFlags) *cobra.Command {
	var (
		id    int64
		name  string
		score float64
	)
	cmd := &cobra.Command{
		Use:   "delete <hist|today>",
		Short: "Delete one record by id, or by name and time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := tagArg(args)
			if err != nil {
				return err
			}
			c := engine.Candidate{Name: name, Score: score}
			if cmd.Flags().Changed("id") {
				c.ID = record.NewID(id)
			}
			return withService(cmd, f, func(ctx context.Context, svc *service.Service) error {
				res, err := svc.Delete(ctx, tag, c)
				return printResult(cmd.OutOrStdout(), res, err)
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "record id")
	cmd.Flags().StringVar(&name, "name", "", "record name")
	cmd.Flags().Float64Var(&score, "score", 0, "record time")
	return cmd
}

func newBoardMergeCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Merge today into hist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, f, func(ctx context.Context, svc *service.Service) error {
				res, err := svc.Merge(ctx)
				return printResult(cmd.OutOrStdout(), res, err)
			})
		},
	}
}

func newBoardResetCmd(f *rootFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset <hist|today>",
		Short: "Empty a board, including its stored rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := tagArg(args)
			if err != nil {
				return err
			}
			if !yes {
				return errResetNotConfirmed
			}
			return withService(cmd, f, func(ctx context.Context, svc *service.Service) error {
				res, err := svc.Reset(ctx, tag)
				return printResult(cmd.OutOrStdout(), res, err)
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func printEntries(w io.Writer, entries []ranking.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tID\tNAME\tTIME")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.Rank, e.ID, e.Name, strconv.FormatFloat(e.Score, 'f', 2, 64))
	}
	return tw.Flush()
}

// printResult prints the board after a mutation. A persist failure still
// prints the board, then reports the error.
func printResult(w io.Writer, res engine.Result, opErr error) error {
	if opErr != nil && !errors.Is(opErr, engine.ErrPersistFailed) {
		return opErr
	}
	fmt.Fprintf(w, "board=%s outcome=%s persisted=%t\n", res.Board, res.Outcome, res.Persisted)
	if err := printEntries(w, ranking.Rank(res.Records)); err != nil {
		return err
	}
	return opErr
}
