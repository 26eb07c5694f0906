package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nainya/confsnap/pkg/changes"
)

type backupOpts struct {
	*rootOpts
	context int
}

func newBackup(parent *rootOpts) *backupOpts {
	return &backupOpts{rootOpts: parent}
}

func (opts *backupOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup [hostname...]",
		Short: "Capture device configurations and report changes",
		Example: `  confsnap backup
  confsnap backup Switch1 Router1 --store-path /var/lib/confsnap`,
		RunE: opts.RunE,
	}
	cmd.Flags().IntVarP(&opts.context, "context", "U", changes.DefaultContext, "lines of context around each change")
	return cmd
}

func (opts *backupOpts) RunE(cmd *cobra.Command, args []string) error {
	a, err := opts.app(cmd)
	if err != nil {
		return err
	}

	inv, err := a.Inventory.Filter(args...)
	if err != nil {
		return err
	}

	results := a.Session.Run(cmd.Context(), inv.Devices)
	if err := printBackup(cmd.OutOrStdout(), results, opts.context); err != nil {
		return err
	}

	if n := failures(results); n > 0 {
		return fmt.Errorf("%d of %d devices failed", n, len(results))
	}
	return nil
}
