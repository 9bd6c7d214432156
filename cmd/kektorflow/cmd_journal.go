package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sanonone/kektorflow/pkg/persistence"
)

var journalCmd = &cobra.Command{
	Use:   "journal [path]",
	Short: "List the runs recorded in a journal",
	Long: `Prints every record of the run journal in write order. A journal cut
short by a crash is read up to its last complete record.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJournal,
}

func runJournal(cmd *cobra.Command, args []string) error {
	path := cfg.Journal.Path
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no journal path: pass one or set journal.path")
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTASK ID\tRECORD\tNODE\tEXIT\tRETRY\tDETAIL")
	st, err := persistence.ReplayFile(path, func(r persistence.Record) error {
		detail := r.Message
		if r.Error != "" {
			detail = r.Error
		} else if r.Chunks > 0 {
			detail = fmt.Sprintf("%d chunks", r.Chunks)
		} else if len(r.Files) > 0 {
			detail = fmt.Sprint(r.Files)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%t\t%s\n",
			r.Time.Format(time.RFC3339), r.TaskID, r.Op, r.Node, r.ExitCode, r.Retry, detail)
		return nil
	})
	if ferr := tw.Flush(); err == nil {
		err = ferr
	}
	if err != nil {
		return err
	}
	if st.Truncated {
		fmt.Fprintf(cmd.ErrOrStderr(), "journal ends with an incomplete record after %d records\n", st.Records)
	}
	return nil
}
