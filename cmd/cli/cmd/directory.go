package cmd

import (
	"fmt"
	"text/tabwriter"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-import/internal/store"
	"github.com/spf13/cobra"
)

func newAccountsCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List destination accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := e.services(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			accounts, err := svc.Accounts.ListAccounts(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCURRENCY")
			for _, a := range accounts {
				fmt.Fprintf(w, "%s\t%s\t%s\n", a.ID, a.Name, a.Currency)
			}
			return w.Flush()
		},
	}
}

func newCategoriesCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := e.services(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			categories, err := svc.Categories.ListCategories(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPARENT")
			for _, c := range categories {
				parent := c.ParentID
				if parent == "" {
					parent = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Name, parent)
			}
			return w.Flush()
		},
	}
}

func newTransactionsCommand(e *env) *cobra.Command {
	var (
		accountID string
		from, to  string
		limit     int
		offset    int
	)

	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List committed transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.ListFilter{AccountID: accountID, Limit: limit, Offset: offset}
			var err error
			if from != "" {
				if filter.From, err = civil.ParseDate(from); err != nil {
					return fmt.Errorf("invalid --from %q (use YYYY-MM-DD)", from)
				}
			}
			if to != "" {
				if filter.To, err = civil.ParseDate(to); err != nil {
					return fmt.Errorf("invalid --to %q (use YYYY-MM-DD)", to)
				}
			}

			ctx := cmd.Context()
			svc, err := e.services(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			txs, err := svc.Transactions.ListTransactions(ctx, filter)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tACCOUNT\tTYPE\tAMOUNT\tCATEGORY\tDESCRIPTION")
			for _, tx := range txs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", tx.Date, tx.AccountID, tx.Type, tx.Amount.StringFixed(2), tx.CategoryID, tx.Description)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "\n%d transactions\n", len(txs))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&accountID, "account", "", "account id")
	f.StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	f.StringVar(&to, "to", "", "last date, YYYY-MM-DD")
	f.IntVar(&limit, "limit", 100, "maximum rows")
	f.IntVar(&offset, "offset", 0, "rows to skip")

	return cmd
}
