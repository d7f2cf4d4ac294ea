package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"bookkeeping/internal/importer"
	"bookkeeping/models"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Stage, commit, roll back and delete statement imports",
}

var (
	stageAccount  uint
	stageProfile  string
	stageStrategy string
	stageMapping  string
	stageCredit   string
	stageDebit    string
	deleteConfirm bool
)

var stageCmd = &cobra.Command{
	Use:   "stage FILE",
	Short: "Stage a CSV statement for review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		req := importer.StageRequest{
			Filename:    filepath.Base(args[0]),
			File:        data,
			AccountID:   stageAccount,
			Strategy:    models.AmountStrategy(stageStrategy),
			CreditToken: stageCredit,
			DebitToken:  stageDebit,
		}
		if stageMapping != "" {
			if err := json.Unmarshal([]byte(stageMapping), &req.Mapping); err != nil {
				return fmt.Errorf("invalid --mapping: %w", err)
			}
		}

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		if stageProfile != "" {
			profiles, err := importer.LoadProfiles(e.cfg.ImportProfiles)
			if err != nil {
				return err
			}
			p, ok := profiles[stageProfile]
			if !ok {
				return fmt.Errorf("unknown profile %q", stageProfile)
			}
			p.Apply(&req)
		}

		res, err := importer.NewService(e.db, e.store).Stage(cmd.Context(), req)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(res)
		}
		fmt.Printf("batch %d: %s (%d rows, %d with errors)\n", res.Batch.ID, res.Batch.Status, res.TotalRows, res.ErrorRows)
		for _, row := range res.Rows {
			for _, msg := range row.Errors {
				fmt.Printf("  row %d: %s\n", row.RowNumber, msg)
			}
		}
		return nil
	},
}

func batchID(arg string) (uint, error) {
	n, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid batch id %q", arg)
	}
	return uint(n), nil
}

var commitCmd = &cobra.Command{
	Use:   "commit BATCH_ID",
	Short: "Turn a validated batch into transactions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := batchID(args[0])
		if err != nil {
			return err
		}
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()
		res, err := importer.NewService(e.db, e.store).Commit(cmd.Context(), id)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(res)
		}
		fmt.Println(res.Message)
		return nil
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback BATCH_ID",
	Short: "Remove an imported batch and its transactions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := batchID(args[0])
		if err != nil {
			return err
		}
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()
		msg, err := importer.NewService(e.db, e.store).Rollback(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Println(msg)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete BATCH_ID",
	Short: "Delete a batch; imported batches need --confirm",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := batchID(args[0])
		if err != nil {
			return err
		}
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()
		confirm := importer.Confirmation{}
		if deleteConfirm {
			confirm = importer.Confirmation{Text: "DELETE", Checked: true}
		}
		msg, err := importer.NewService(e.db, e.store).Delete(cmd.Context(), id, confirm)
		if err != nil {
			return err
		}
		fmt.Println(msg)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List import batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()
		list, err := importer.NewService(e.db, e.store).ListBatches(cmd.Context(), importer.BatchFilter{AccountID: stageAccount})
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(list)
		}
		for _, b := range list {
			fmt.Printf("%6d  %-10s  %-30s  %s\n", b.ID, b.Status, b.Filename, b.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

func init() {
	stageCmd.Flags().UintVar(&stageAccount, "account", 0, "destination account id")
	stageCmd.Flags().StringVar(&stageProfile, "profile", "", "import profile name")
	stageCmd.Flags().StringVar(&stageStrategy, "strategy", "", "amount strategy: signed, indicator or split_columns")
	stageCmd.Flags().StringVar(&stageMapping, "mapping", "", `column mapping as JSON, e.g. {"Date":"date"}`)
	stageCmd.Flags().StringVar(&stageCredit, "credit-token", "", "indicator value meaning money in")
	stageCmd.Flags().StringVar(&stageDebit, "debit-token", "", "indicator value meaning money out")
	listCmd.Flags().UintVar(&stageAccount, "account", 0, "only batches for this account")
	deleteCmd.Flags().BoolVar(&deleteConfirm, "confirm", false, "confirm deleting an imported batch and its transactions")

	importCmd.AddCommand(stageCmd, commitCmd, rollbackCmd, deleteCmd, listCmd)
}
