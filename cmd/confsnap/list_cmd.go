package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type listOpts struct {
	*rootOpts
}

func newList(parent *rootOpts) *listOpts {
	return &listOpts{rootOpts: parent}
}

func (opts *listOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "list <hostname>",
		Short: "List the archived captures of a device, oldest first",
		RunE:  opts.RunE,
	}
}

func (opts *listOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("expected exactly one hostname")
	}

	a, err := opts.app(cmd)
	if err != nil {
		return err
	}

	refs, err := a.Store.List(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := newTabwriter(cmd.OutOrStdout())
	fmt.Fprintln(out, "KEY\tCAPTURED")
	for _, ref := range refs {
		fmt.Fprintf(out, "%s\t%s\n", ref.Key(), ref.CapturedAt.Format(time.RFC3339))
	}
	return out.Flush()
}
