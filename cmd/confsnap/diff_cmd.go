package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nainya/confsnap/pkg/changes"
	"github.com/nainya/confsnap/pkg/snapshot"
)

type diffOpts struct {
	*rootOpts
	context int
	base    string
	target  string
}

func newDiff(parent *rootOpts) *diffOpts {
	return &diffOpts{rootOpts: parent}
}

func (opts *diffOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <hostname>",
		Short: "Compare a device's two newest captures, or two named ones",
		Example: `  confsnap diff Switch1
  confsnap diff Switch1 --base Switch1_2024-03-09_14-05-07 --target Switch1_2024-03-10_14-05-07`,
		RunE: opts.RunE,
	}
	cmd.Flags().IntVarP(&opts.context, "context", "U", changes.DefaultContext, "lines of context around each change")
	cmd.Flags().StringVar(&opts.base, "base", "", "key of the older capture")
	cmd.Flags().StringVar(&opts.target, "target", "", "key of the newer capture")
	return cmd
}

func (opts *diffOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("expected exactly one hostname")
	}
	deviceID := args[0]
	if (opts.base == "") != (opts.target == "") {
		return errors.New("--base and --target must be given together")
	}

	a, err := opts.app(cmd)
	if err != nil {
		return err
	}

	var res *changes.Result
	if opts.base != "" {
		base, err := snapshot.ParseKey(deviceID, opts.base)
		if err != nil {
			return err
		}
		target, err := snapshot.ParseKey(deviceID, opts.target)
		if err != nil {
			return err
		}
		res, err = a.Detector.Compare(cmd.Context(), base, target)
		if err != nil {
			return err
		}
	} else {
		res, err = a.Detector.CompareLatest(cmd.Context(), deviceID)
		if errors.Is(err, changes.ErrInsufficientHistory) {
			fmt.Fprintf(cmd.OutOrStdout(), " Not enough backups to compare for %s\n", deviceID)
			return nil
		}
		if err != nil {
			return err
		}
	}

	return printDiff(cmd.OutOrStdout(), res, opts.context)
}
