package cmd

import (
	"github.com/spf13/cobra"
)

// newQueuesCmd creates the 'queues' subcommand, which reports the pending
// task count of each priority queue and exits.
func newQueuesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queues",
		Short: "Print the pending task count of each priority queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			var total int64
			for _, name := range appInstance.Queues() {
				n, err := appInstance.Broker().Length(cmd.Context(), name)
				if err != nil {
					return err
				}
				cmd.Printf("%-20s %d\n", name, n)
				total += n
			}
			cmd.Printf("%-20s %d\n", "total", total)
			return nil
		},
	}
}
