package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/warp/consequence-ledger/generic"
	"github.com/warp/consequence-ledger/store/sqlite"
)

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileImportCmd)
	profileCmd.AddCommand(profileListCmd)

	profileImportCmd.Flags().String("family", "", "Family ID, overrides the file's family_id")
	profileListCmd.Flags().String("family", "", "Only list profiles of this family")
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage child profiles",
}

// ─── profile import ─────────────────────────────────────────────────────────

var profileImportCmd = &cobra.Command{
	Use:   "import FILE.toml",
	Short: "Create or replace a profile from a TOML file",
	Long: `Import a profile written in TOML: name, timezone, [[consequences]] and
[[plan]] tables. A profile without an id gets a fresh one. Importing an
existing id replaces its configuration; its transactions are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runProfileImport,
}

func runProfileImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	pj, err := s.profiles.DecodeTOML(data)
	if err != nil {
		return err
	}
	if family, _ := cmd.Flags().GetString("family"); family != "" {
		pj.FamilyID = family
	}
	if pj.ID == "" {
		pj.ID = uuid.NewString()
	}
	if pj.FamilyID == "" {
		return fmt.Errorf("profile %q has no family_id; pass --family", pj.Name)
	}

	p, err := s.profiles.FromJSON(pj)
	if err != nil {
		return err
	}
	configJSON, err := s.profiles.Encode(p)
	if err != nil {
		return err
	}
	rec := sqlite.ProfileRecord{
		ID:         string(p.ID),
		FamilyID:   string(p.FamilyID),
		Name:       p.Name,
		ConfigJSON: configJSON,
	}
	if err := s.store.SaveProfile(cmd.Context(), rec); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%s) into family %s\n", p.Name, p.ID, p.FamilyID)
	return nil
}

// ─── profile list ───────────────────────────────────────────────────────────

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles",
	Args:  cobra.NoArgs,
	RunE:  runProfileList,
}

func runProfileList(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	family, _ := cmd.Flags().GetString("family")
	recs, err := s.store.ListProfiles(cmd.Context(), family)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No profiles.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFAMILY\tNAME\tPLANNED")
	for _, rec := range recs {
		planned := "-"
		if p, err := s.profile(cmd.Context(), rec.ID); err == nil {
			if days := p.Plan.PlannedDays(); len(days) > 0 {
				planned = joinSessions(days)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rec.ID, rec.FamilyID, rec.Name, planned)
	}
	return tw.Flush()
}

func joinSessions(days []generic.Session) string {
	out := ""
	for i, d := range days {
		if i > 0 {
			out += ","
		}
		out += string(d)
	}
	return out
}
