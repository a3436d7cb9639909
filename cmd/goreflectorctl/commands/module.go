package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// moduleCmd groups the admin protocol's lifecycle methods (§6 START,
// STOP, RESTART, STATUS, LIST).
func moduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "module",
		Short: "Manage reflector modules",
	}
	cmd.AddCommand(moduleStartCmd())
	cmd.AddCommand(moduleStopCmd())
	cmd.AddCommand(moduleRestartCmd())
	cmd.AddCommand(moduleStatusCmd())
	cmd.AddCommand(moduleListCmd())
	return cmd
}

func targetRequest(cmd *cobra.Command, method, target string, extra map[string]string) (string, error) {
	client, err := dial(cmd)
	if err != nil {
		return "", err
	}
	defer client.Close()

	headers := map[string]string{"Target": target}
	for k, v := range extra {
		headers[k] = v
	}

	resp, err := client.Do(method, headers, nil)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", method, target, err)
	}
	return describeResponse(resp), nil
}

func moduleStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <class/name>",
		Short: "Start a module (§6 START)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := targetRequest(cmd, "START", args[0], nil)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}

func moduleStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <class/name>",
		Short: "Stop a module (§6 STOP)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := targetRequest(cmd, "STOP", args[0], nil)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}

func moduleRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart <class/name>",
		Short: "Restart a module (§6 RESTART)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := targetRequest(cmd, "RESTART", args[0], nil)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}

func moduleStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <class/name>",
		Short: "Show a module's lifecycle state (§6 STATUS)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := targetRequest(cmd, "STATUS", args[0], nil)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}

func moduleListCmd() *cobra.Command {
	var class string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List loaded modules (§6 LIST)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := dial(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			headers := map[string]string{}
			if class != "" {
				headers["Class"] = class
			}
			resp, err := client.Do("LIST", headers, nil)
			if err != nil {
				return fmt.Errorf("LIST: %w", err)
			}
			fmt.Println(describeResponse(resp))
			return nil
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "restrict listing to one module class")
	return cmd
}
