package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	timeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "payrec-cli",
		Short: "Payrec CLI tool",
		Long:  `A command line interface for inspecting the payment reconciliation service.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the payrec API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	// Transaction commands
	transactionsCmd := &cobra.Command{
		Use:   "transactions",
		Short: "Transaction operations",
	}

	transactionsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List reconciliation transactions",
		Run: func(cmd *cobra.Command, args []string) {
			getJSON("/api/v1/transactions")
		},
	})

	transactionsCmd.AddCommand(&cobra.Command{
		Use:   "get [id]",
		Short: "Show one transaction",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			getJSON("/api/v1/transactions/" + args[0])
		},
	})

	rootCmd.AddCommand(transactionsCmd)

	// Beneficiary commands
	beneficiariesCmd := &cobra.Command{
		Use:   "beneficiaries",
		Short: "Beneficiary operations",
	}

	beneficiariesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List beneficiary bank accounts",
		Run: func(cmd *cobra.Command, args []string) {
			getJSON("/api/v1/beneficiaries")
		},
	})

	rootCmd.AddCommand(beneficiariesCmd)

	// Task queue commands
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Task queue operations",
	}

	tasksCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show task queue counters",
		Run: func(cmd *cobra.Command, args []string) {
			getJSON("/api/v1/tasks/stats")
		},
	})

	rootCmd.AddCommand(tasksCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func getJSON(path string) {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(baseURL + path)
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request FAILED (Status: %d)\nResponse: %s\n", resp.StatusCode, string(body))
		os.Exit(1)
	}

	var pretty json.RawMessage
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Printf("Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(out))
}
