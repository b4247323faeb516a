package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/consequence-ledger/consequence"
	"github.com/warp/consequence-ledger/generic"
)

func init() {
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(historyCmd)

	for _, c := range []*cobra.Command{stateCmd, toggleCmd} {
		c.Flags().String("date", "", "Day in YYYY-MM-DD (default today in the profile's zone)")
	}
	toggleCmd.Flags().String("session", "", "Target session (friday, saturday, sunday); empty for the general balance or the first planned day")
	toggleCmd.Flags().String("actor", "", "Caregiver recorded on the transactions")
	historyCmd.Flags().Int("limit", 0, "Show only the most recent N transactions")
}

// ─── state ──────────────────────────────────────────────────────────────────

var stateCmd = &cobra.Command{
	Use:   "state PROFILE_ID",
	Short: "Show the consequence panel and balance for a day",
	Args:  cobra.ExactArgs(1),
	RunE:  runState,
}

func runState(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := s.profile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	day, err := dayFlag(cmd, p)
	if err != nil {
		return err
	}
	e, err := s.engine(cmd.Context(), p)
	if err != nil {
		return err
	}
	defer e.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s, %s\n\n", p.Name, generic.FormatDay(day, p.Loc()))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tLABEL\tMINUTES\tAPPLIED")
	for _, st := range e.States(day) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", st.Definition.Type, st.Definition.Label, st.Definition.Amount, appliedLabel(st.State))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	sum := e.Summary(day)
	fmt.Fprintf(out, "\nTotal: %s minutes\n", sum.Total)
	for _, session := range append(p.Plan.PlannedDays(), generic.GeneralBalance) {
		if v, ok := sum.BySession[session]; ok {
			fmt.Fprintf(out, "  %s: %s\n", consequence.DayLabel(session), v)
		}
	}
	return nil
}

func appliedLabel(st consequence.DailyState) string {
	if !st.Applied {
		return "-"
	}
	return consequence.DayLabel(st.Session)
}

// ─── toggle ─────────────────────────────────────────────────────────────────

var toggleCmd = &cobra.Command{
	Use:   "toggle PROFILE_ID TYPE",
	Short: "Apply, undo or move a penalty",
	Long: `Toggle a penalty for a day. An inactive penalty is applied to --session,
or to the first planned day, or to the general balance. An active penalty is
undone unless --session names a different day, in which case it moves there.`,
	Args: cobra.ExactArgs(2),
	RunE: runToggle,
}

func runToggle(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := s.profile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	def, ok := p.Definition(args[1])
	if !ok {
		return fmt.Errorf("%w: %s", generic.ErrUnknownConsequence, args[1])
	}
	day, err := dayFlag(cmd, p)
	if err != nil {
		return err
	}
	session, _ := cmd.Flags().GetString("session")

	e, err := s.engine(cmd.Context(), p)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	if actor, _ := cmd.Flags().GetString("actor"); actor != "" {
		ctx = consequence.WithActor(ctx, actor)
	}
	outcome, err := e.Toggle(ctx, def, day, generic.Session(session))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", def.Label, outcome, appliedLabel(e.State(def.Type, day)))
	return nil
}

// ─── history ────────────────────────────────────────────────────────────────

var historyCmd = &cobra.Command{
	Use:   "history PROFILE_ID",
	Short: "Print a profile's transaction log in arrival order",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := s.profile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	txs, err := s.ledger.Load(cmd.Context(), p.ID)
	if err != nil {
		return err
	}
	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(txs) > limit {
		txs = txs[len(txs)-limit:]
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTIME\tKIND\tTYPE\tAMOUNT\tSESSION\tBY")
	for _, tx := range txs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.Seq, tx.Timestamp.In(p.Loc()).Format(time.DateTime), tx.Type, tx.ConsequenceType,
			tx.Amount, sessionColumn(tx), tx.CreatedBy)
	}
	return tw.Flush()
}

func sessionColumn(tx generic.Transaction) string {
	if tx.Type == generic.TxReversal {
		return "-"
	}
	return consequence.DayLabel(tx.TargetSession)
}

func dayFlag(cmd *cobra.Command, p consequence.Profile) (time.Time, error) {
	s, _ := cmd.Flags().GetString("date")
	if s == "" {
		return generic.StartOfDay(time.Now(), p.Loc()), nil
	}
	day, err := generic.ParseDay(s, p.Loc())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q (want YYYY-MM-DD)", s)
	}
	return day, nil
}
