package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/warp/rental-ledger/arrears"
	"github.com/warp/rental-ledger/ledger"
	"github.com/warp/rental-ledger/occupancy"
)

// ArrearsCmd prints outstanding house bills grouped by tenant.
func ArrearsCmd(v *viper.Viper) *cobra.Command {
	var (
		building int64
		asOf     string
	)
	cmd := &cobra.Command{
		Use:   "arrears",
		Short: "Print the arrears report",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := arrears.Query{BuildingID: ledger.BuildingID(building)}
			if asOf != "" {
				d, err := ledger.ParseDate(asOf)
				if err != nil {
					return err
				}
				q.AsOf = d
			}

			a, err := bootstrap(cmd, v)
			if err != nil {
				return err
			}
			defer a.close()

			rep, err := arrears.NewReporter(a.store, a.buckets, a.log).Report(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().Int64Var(&building, "building", 0, "only this building ID")
	cmd.Flags().StringVar(&asOf, "as-of", "", "report date, YYYY-MM-DD (default today)")
	return cmd
}

// ReconcileCmd recomputes house occupancy flags once.
func ReconcileCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute every house's occupied flag",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd, v)
			if err != nil {
				return err
			}
			defer a.close()

			fixed, err := occupancy.NewTracker(a.store, a.log).Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d house(s) corrected\n", fixed)
			return nil
		},
	}
}

func printReport(out io.Writer, rep arrears.Report) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Arrears as of %s\t\n\n", rep.AsOf)

	fmt.Fprintln(tw, "TENANT\tPHONE\tBUILDING\tHOUSE\tBILLS\tAMOUNT\t")
	for _, t := range rep.Tenants {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t\n",
			t.TenantName, t.TenantPhone, t.BuildingName, t.HouseNumber, t.Bills, ledger.FormatMoney(t.Amount))
	}
	fmt.Fprintf(tw, "TOTAL\t\t\t\t%d\t%s\t\n\n", len(rep.Rows), ledger.FormatMoney(rep.Total))

	fmt.Fprintln(tw, "AGE (DAYS)\tBILLS\tAMOUNT\t")
	for _, a := range rep.Aging {
		fmt.Fprintf(tw, "%s\t%d\t%s\t\n", a.Label, a.Bills, ledger.FormatMoney(a.Amount))
	}
	return tw.Flush()
}
