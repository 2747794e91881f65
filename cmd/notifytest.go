package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/formwatch/formwatch/internal/notify"
)

func newNotifyTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Sends a test alert on every enabled channel",
		Long: `Pushes a synthetic change alert through every enabled notification
channel so credentials and webhooks can be validated without waiting for a
real change. Nothing is written to the store.`,
		RunE: runNotifyTest,
	}
}

func runNotifyTest(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	outcomes := a.notifier.TestSend(cmd.Context())
	failed := 0
	for _, o := range outcomes {
		switch o.Status {
		case notify.OutcomeDelivered:
			fmt.Printf("%-8s delivered\n", o.Channel)
		case notify.OutcomeDisabled:
			fmt.Printf("%-8s disabled\n", o.Channel)
		case notify.OutcomeConfigMissing:
			fmt.Printf("%-8s not configured: %v\n", o.Channel, o.Err)
		case notify.OutcomeFailed:
			fmt.Printf("%-8s FAILED: %v\n", o.Channel, o.Err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d channel(s) failed", failed)
	}
	return nil
}
