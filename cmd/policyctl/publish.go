package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"docverify/internal/verification/policy"
	"docverify/internal/verification/policy/publish"
	"docverify/internal/verification/policy/store"
	"docverify/pkg/platform/audit/publishers/compliance"
	pgaudit "docverify/pkg/platform/audit/store/postgres"
	"docverify/pkg/platform/tx"
)

func newPublishCmd(newLogger loggerFactory) *cobra.Command {
	var databaseURL string
	cmd := &cobra.Command{
		Use:   "publish <file>...",
		Short: "Publish policy versions to the database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				return fmt.Errorf("--database-url or DOCVERIFY_DATABASE_URL is required")
			}
			db, err := sql.Open("postgres", databaseURL)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			log := newLogger(cmd)
			publisher := publish.New(
				store.NewPostgres(db),
				compliance.New(pgaudit.New(db), compliance.WithLogger(log)),
				publish.WithTx(tx.NewRunner(db, 0)),
				publish.WithLogger(log),
			)
			for _, path := range args {
				p, err := policy.ParseFile(path)
				if err != nil {
					return err
				}
				if err := publisher.Publish(cmd.Context(), p); err != nil {
					return fmt.Errorf("publish %s: %w", path, err)
				}
				cmd.Printf("published %s\n", p.Ref())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DOCVERIFY_DATABASE_URL"), "Postgres connection URL")
	return cmd
}
