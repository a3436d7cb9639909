package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// sessionCmd issues the admin protocol's SESSION method (§6), reporting
// a listener's session byte counters.
func sessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session <listener/name>",
		Short: "Show a listener session's byte counters (§6 SESSION)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := targetRequest(cmd, "SESSION", args[0], nil)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}

// aclCmd issues the admin protocol's ACL method (§6), reporting the
// routing access decision for an address.
func aclCmd() *cobra.Command {
	var address string
	var listener int

	cmd := &cobra.Command{
		Use:   "acl",
		Short: "Check routing access for an address (§6 ACL)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := dial(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			headers := map[string]string{"Address": address}
			if listener >= 0 {
				headers["Listener"] = fmt.Sprintf("%d", listener)
			}
			resp, err := client.Do("ACL", headers, nil)
			if err != nil {
				return fmt.Errorf("ACL: %w", err)
			}
			fmt.Println(describeResponse(resp))
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "address or prefix to check (required)")
	cmd.Flags().IntVar(&listener, "listener", -1, "listener id to scope the check to, -1 for any")
	return cmd
}
