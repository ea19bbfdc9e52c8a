package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docverify/internal/verification/policy"
	"docverify/internal/verification/policy/store"
	"docverify/internal/verification/session"
)

func newEvaluateCmd(newLogger loggerFactory) *cobra.Command {
	var policyPath, inputPath string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a policy against a facts and signals file and print the decision",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := policy.ParseFile(policyPath)
			if err != nil {
				return err
			}
			policies := store.NewInMemory()
			if err := policies.Save(cmd.Context(), p); err != nil {
				return err
			}

			raw, err := os.ReadFile(inputPath)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			var req session.Request
			if err := json.Unmarshal(raw, &req); err != nil {
				return fmt.Errorf("decode input: %w", err)
			}
			req.PolicyID = p.ID
			req.Version = p.Version

			svc := session.New(policies, session.WithLogger(newLogger(cmd)))
			decision, err := svc.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(decision)
		},
	}
	cmd.Flags().StringVar(&policyPath, "policy", "", "policy file (YAML or JSON)")
	cmd.Flags().StringVar(&inputPath, "input", "", "JSON file with facts and signals")
	_ = cmd.MarkFlagRequired("policy")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
