package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitcore/internal/money"
	"github.com/mmynk/splitcore/internal/service"
	"github.com/mmynk/splitcore/pkg/api"
)

func settleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settle [file]",
		Short: "Split expenses from a JSON file and print who pays whom",
		Long: `Read a batch of expenses, split each one, and print the balances and the
fewest transfers that settle them. Nothing is stored. Reads stdin when no file
is given or the file is "-".

Input format:

  {
    "currency": "USD",
    "expenses": [
      {
        "payer_id": "local:ana",
        "items": [{"name": "Pizza", "quantity": 1,
                   "total_price": {"units": 1200},
                   "assigned_to": ["local:ana", "local:ben"]}],
        "tax": {"units": 0}, "tip": {"units": 0}, "total": {"units": 1200}
      }
    ]
  }`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSettle,
	}

	cmd.Flags().String("format", "table", "output format (table, json)")

	return cmd
}

func runSettle(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "json" {
		return fmt.Errorf("invalid output format: %s", format)
	}

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	var req service.SettleRequest
	dec := json.NewDecoder(in)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return fmt.Errorf("failed to parse input: %w", err)
	}

	report, err := service.Settle(&req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return printReport(out, report)
}

func printReport(w io.Writer, report *service.SettleReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "PARTICIPANT\tPAID\tOWED\tNET")
	for _, b := range report.Balances {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.ParticipantID, display(b.TotalPaid), display(b.TotalOwed), display(b.Net))
	}
	fmt.Fprintln(tw)

	if len(report.Settlements) == 0 {
		fmt.Fprintln(tw, "Everyone is settled up.")
		return tw.Flush()
	}
	fmt.Fprintln(tw, "FROM\tTO\tAMOUNT")
	for _, s := range report.Settlements {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.From, s.To, display(s.Amount))
	}
	return tw.Flush()
}

// display renders a wire amount like "12.50 USD".
func display(m api.Money) string {
	c, err := money.ParseCurrency(m.Currency)
	if err != nil {
		return fmt.Sprintf("%d", m.Units)
	}
	return money.New(m.Units, c).String()
}
