package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"bookkeeping/internal/reporting"

	"github.com/spf13/cobra"
)

var (
	reportRange   string
	reportFrom    string
	reportTo      string
	reportGroupBy string
	reportAsOf    string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print financial reports",
}

func reportWindow() reporting.Range {
	key := reportRange
	if key == "" && (reportFrom != "" || reportTo != "") {
		key = reporting.RangeCustom
	}
	return reporting.ResolveRange(key, reportFrom, reportTo, time.Now().UTC())
}

func printSection(tw *tabwriter.Writer, title string, s reporting.Section) {
	fmt.Fprintf(tw, "%s\t\n", title)
	for _, l := range s.Lines {
		fmt.Fprintf(tw, "  %s\t%s\n", l.Name, l.Amount.StringFixed(2))
	}
	fmt.Fprintf(tw, "  Total\t%s\n", s.Total.StringFixed(2))
}

var plCmd = &cobra.Command{
	Use:   "pl",
	Short: "Profit and loss",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()
		report, err := reporting.NewService(e.db).ProfitAndLoss(cmd.Context(), reporting.PLRequest{
			Range:   reportWindow(),
			GroupBy: reporting.GroupBy(reportGroupBy),
		})
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(report)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "\tIncome\tCOGS\tGross\tExpense\tNet\t")
		row := func(c reporting.PLColumn) {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n", c.Key,
				c.Income.StringFixed(2), c.COGS.StringFixed(2), c.GrossProfit.StringFixed(2),
				c.Expense.StringFixed(2), c.NetIncome.StringFixed(2))
		}
		for _, c := range report.Columns {
			row(c)
		}
		row(report.Total)
		return tw.Flush()
	},
}

var balanceSheetCmd = &cobra.Command{
	Use:   "balance-sheet",
	Short: "Balance sheet as of a day (default today)",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now().UTC()
		asOf := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if reportAsOf != "" {
			d, err := time.Parse("2006-01-02", reportAsOf)
			if err != nil {
				return fmt.Errorf("invalid --as-of: %w", err)
			}
			asOf = d
		}
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()
		sheet, err := reporting.NewService(e.db).BalanceSheet(cmd.Context(), asOf)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(sheet)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "Balance sheet as of %s\t\n", asOf.Format("2006-01-02"))
		printSection(tw, "Assets", sheet.Assets)
		printSection(tw, "Liabilities", sheet.Liabilities)
		printSection(tw, "Equity", sheet.Equity)
		fmt.Fprintf(tw, "Difference\t%s\n", sheet.Difference.StringFixed(2))
		return tw.Flush()
	},
}

var cashflowCmd = &cobra.Command{
	Use:   "cashflow",
	Short: "Cash flow statement",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()
		report, err := reporting.NewService(e.db).Cashflow(cmd.Context(), reportWindow())
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(report)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		printSection(tw, "Operating", report.Operating)
		printSection(tw, "Investing", report.Investing)
		printSection(tw, "Financing", report.Financing)
		fmt.Fprintf(tw, "Net change\t%s\n", report.NetChange.StringFixed(2))
		fmt.Fprintf(tw, "Accrual adjustment\t%s\n", report.AccrualAdjustment.StringFixed(2))
		return tw.Flush()
	},
}

func init() {
	for _, c := range []*cobra.Command{plCmd, cashflowCmd} {
		c.Flags().StringVar(&reportRange, "range", "", "preset range: this_month, last_quarter, this_year, all...")
		c.Flags().StringVar(&reportFrom, "from", "", "custom range start (YYYY-MM-DD)")
		c.Flags().StringVar(&reportTo, "to", "", "custom range end (YYYY-MM-DD)")
	}
	plCmd.Flags().StringVar(&reportGroupBy, "group-by", "month", "month, quarter, year, customer, vendor or product")
	balanceSheetCmd.Flags().StringVar(&reportAsOf, "as-of", "", "report day (YYYY-MM-DD)")

	reportCmd.AddCommand(plCmd, balanceSheetCmd, cashflowCmd)
}
