package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// shellCommands lists the available commands for the interactive shell help output.
var shellCommands = []struct {
	name string
	desc string
}{
	{"module list [--class <class>]", "List loaded modules"},
	{"module start <class/name>", "Start a module"},
	{"module stop <class/name>", "Stop a module"},
	{"module restart <class/name>", "Restart a module"},
	{"module status <class/name>", "Show a module's lifecycle state"},
	{"clients add <listener/name> --address <cidr>", "Add a client"},
	{"clients remove <listener/name> --address <cidr>", "Remove a client"},
	{"clients list <listener/name>", "List a listener's clients"},
	{"session <listener/name>", "Show a listener's byte counters"},
	{"acl --address <cidr>", "Check routing access for an address"},
	{"version", "Print build information"},
	{"help", "Show this help message"},
	{"exit / quit", "Leave the interactive shell"},
}

func shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive goreflectorctl shell",
		Long:  "Launches a simple REPL that accepts goreflectorctl subcommands. Type 'help', 'exit', or 'quit'.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			printShellBanner()
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Print("goreflectorctl> ")

			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())

				switch {
				case line == "exit" || line == "quit":
					return nil
				case line == "help" || line == "?":
					printShellHelp()
				case line != "":
					args := strings.Fields(line)
					rootCmd.SetArgs(args)

					if err := rootCmd.Execute(); err != nil {
						fmt.Fprintln(os.Stderr, "Error:", err)
					}
				}

				fmt.Print("goreflectorctl> ")
			}

			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}

			return nil
		},
	}
}

// printShellBanner prints a welcome message when the shell starts.
func printShellBanner() {
	fmt.Println("goreflectorctl interactive shell. Type 'help' for available commands, 'exit' to quit.")
	fmt.Println()
}

// printShellHelp prints a formatted list of available shell commands.
func printShellHelp() {
	fmt.Println("Available commands:")
	fmt.Println()

	for _, cmd := range shellCommands {
		fmt.Printf("  %-42s %s\n", cmd.name, cmd.desc)
	}

	fmt.Println()
}
