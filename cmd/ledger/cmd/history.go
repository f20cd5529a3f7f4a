package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/trogers1052/trade-ledger/internal/report"
	"github.com/trogers1052/trade-ledger/internal/scheduler"
	"github.com/trogers1052/trade-ledger/internal/service"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "history <code>",
		Short: "Print the trade history and position summary of an instrument",
		Long: `Replay the ledger of one instrument and print every trade with its fee,
tax and realized profit, followed by total investment, total profit and ROI.

With --watch the report is re-rendered on REFRESH_SCHEDULE until interrupted.

Example:
  ledger history 2330 --file stock_trades.csv --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, svc, err := opts.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			render := func() error {
				return renderHistory(ctx, out, svc, args[0])
			}

			if !watch {
				return render()
			}

			sched := scheduler.New(a.log)
			if err := sched.AddJob(a.cfg.RefreshSchedule, scheduler.FuncJob{JobName: "history_refresh", Fn: render}); err != nil {
				return fmt.Errorf("invalid refresh schedule: %w", err)
			}
			if err := sched.RunNow(scheduler.FuncJob{JobName: "history_refresh", Fn: render}); err != nil {
				return err
			}
			sched.Start()
			<-ctx.Done()
			sched.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-render on the refresh schedule until interrupted")
	return cmd
}

func renderHistory(ctx context.Context, out io.Writer, svc *service.Service, code string) error {
	rep, err := svc.Report(ctx, code)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s\n", time.Now().Format("2006-01-02 15:04:05"))
	return report.WriteText(out, rep)
}
