package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docverify/internal/verification/policy"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Parse and validate policy files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				p, err := policy.ParseFile(path)
				if err == nil {
					err = policy.Validate(p)
				}
				if err != nil {
					failed++
					cmd.Printf("FAIL %s: %v\n", path, err)
					continue
				}
				cmd.Printf("ok   %s (%s, %d rules)\n", path, p.Ref(), len(p.Rules))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d policies invalid", failed, len(args))
			}
			return nil
		},
	}
}
