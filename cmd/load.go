package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Seeds the store with agencies and resources from config",
		Long: `Upserts the agencies and resources declared in the config file into
the store. Existing resources keep their recorded digests and timestamps, so
reloading the catalog never resets monitoring state.`,
		RunE: runLoad,
	}
}

func runLoad(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := seedStore(ctx, a.store, a.cfg.Agencies); err != nil {
		return err
	}

	resources, err := a.store.ListResources(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("loaded %d agencies, %d resources\n", len(a.cfg.Agencies), len(resources))
	return nil
}
