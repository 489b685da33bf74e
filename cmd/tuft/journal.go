package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/tuft-client/internal/service/format"
	"github.com/zhouzirui/tuft-client/internal/service/journal"
)

func newJournalCmd(a *app) *cobra.Command {
	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Browse the debug journal without starting a session",
	}

	journalCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List journal entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.syncLogger()
			names, err := a.journalStore().List()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(a.out, "デバッグログはまだありません")
				return nil
			}
			for i, name := range names {
				fmt.Fprintf(a.out, "%3d. %s\n", i+1, name)
			}
			return nil
		},
	})

	journalCmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Print one journal entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.syncLogger()
			entry, err := a.journalStore().Open(args[0])
			if errors.Is(err, journal.ErrNotFound) {
				return fmt.Errorf("デバッグログが見つかりません: %s", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, format.Indent(entry))
			return nil
		},
	})

	return journalCmd
}
