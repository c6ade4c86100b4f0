package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plcforge/plcc/internal/diag"
)

func newExplainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <checker-tag>",
		Short: "Print the taxonomy entry for a diagnostic checker tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, ok := diag.GetErrorInfo(args[0])
			if !ok {
				return fmt.Errorf("unknown checker tag %q", args[0])
			}
			fmt.Printf("%s\n", bold(info.Checker))
			fmt.Printf("  category:    %s\n", info.Category)
			fmt.Printf("  description: %s\n", info.Description)
			return nil
		},
	}
}
