package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// clientsCmd issues the admin protocol's CLIENTS method (§6 example:
// "CLIENTS RAP/1.0" with Target/Action/Address headers).
func clientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "Manage a listener's client membership (§6 CLIENTS)",
	}
	cmd.AddCommand(clientsAddCmd())
	cmd.AddCommand(clientsRemoveCmd())
	cmd.AddCommand(clientsListCmd())
	return cmd
}

func clientsRequest(cmd *cobra.Command, target, action, address string) (string, error) {
	client, err := dial(cmd)
	if err != nil {
		return "", err
	}
	defer client.Close()

	headers := map[string]string{"Target": target, "Action": action}
	if address != "" {
		headers["Address"] = address
	}

	resp, err := client.Do("CLIENTS", headers, nil)
	if err != nil {
		return "", fmt.Errorf("CLIENTS %s: %w", action, err)
	}
	return describeResponse(resp), nil
}

func clientsAddCmd() *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "add <listener/name>",
		Short: "Add a client to a listener (§6 CLIENTS Action: add)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := clientsRequest(cmd, args[0], "add", address)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "client address, e.g. 192.0.2.17/32 (required)")
	return cmd
}

func clientsRemoveCmd() *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "remove <listener/name>",
		Short: "Remove a client from a listener (§6 CLIENTS Action: remove)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := clientsRequest(cmd, args[0], "remove", address)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "client address or prefix to remove (required)")
	return cmd
}

func clientsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <listener/name>",
		Short: "List a listener's current clients",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := clientsRequest(cmd, args[0], "list", "")
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}
