package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/goyeahh/SEU-2025-summer-semester-recommendation-system/internal/site"
)

func newPlatformsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List registered platforms and their categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, p := range site.Platforms() {
				adapter, err := site.Lookup(p)
				if err != nil {
					return err
				}
				cmd.Printf("%s: %s\n", p, strings.Join(adapter.Categories(), ", "))
			}
			return nil
		},
	}
}
