// inboxd CLI - command line client for the inboxd message API
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/inboxd/inboxd/clients/go/inboxd"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("INBOXD_URL")
	secret := os.Getenv("WEBHOOK_SECRET")
	client := inboxd.NewClient(baseURL, secret)

	switch os.Args[1] {
	case "send":
		if len(os.Args) < 5 {
			fmt.Fprintln(os.Stderr, "Usage: inboxd send <from> <to> <text>")
			os.Exit(1)
		}
		result, err := client.SendMessage(inboxd.Message{
			From: os.Args[2],
			To:   os.Args[3],
			Text: os.Args[4],
		})
		exitOnError(err)
		printJSON(result)

	case "list":
		opts := inboxd.ListOptions{}
		if len(os.Args) > 2 {
			opts.Query = os.Args[2]
		}
		page, err := client.ListMessages(opts)
		exitOnError(err)
		for _, m := range page.Data {
			fmt.Printf("  %s  %s -> %s  %s\n", m.TS.Format("2006-01-02 15:04:05"), m.From, m.To, m.Text)
		}
		fmt.Printf("total: %d\n", page.Total)

	case "stats":
		stats, err := client.Stats()
		exitOnError(err)
		printJSON(stats)

	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: inboxd <command>")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  send <from> <to> <text>   deliver a message to the webhook")
	fmt.Fprintln(os.Stderr, "  list [q]                  list stored messages")
	fmt.Fprintln(os.Stderr, "  stats                     show aggregate stats")
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
