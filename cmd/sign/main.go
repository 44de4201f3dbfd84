package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
)

func main() {
	secret := flag.String("secret", "", "Webhook secret (shared with the server)")
	bodyFile := flag.String("body", "", "File containing request body (or use stdin)")
	sample := flag.Bool("sample", false, "Generate a sample payload instead of reading one")
	from := flag.String("from", "+14155550100", "Sender for the sample payload")
	to := flag.String("to", "+14155550199", "Recipient for the sample payload")
	text := flag.String("text", "hello from sign", "Text for the sample payload")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "Usage: sign -secret <webhook-secret> [-body <file> | -sample]")
		fmt.Fprintln(os.Stderr, "  Reads body from stdin if -body not specified")
		os.Exit(1)
	}

	var body []byte
	var err error
	if *sample {
		body, err = json.Marshal(map[string]string{
			"message_id": ulid.Make().String(),
			"from":       *from,
			"to":         *to,
			"ts":         time.Now().UTC().Format(time.RFC3339),
			"text":       *text,
		})
	} else if *bodyFile != "" {
		body, err = os.ReadFile(*bodyFile)
	} else {
		body, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read body: %v\n", err)
		os.Exit(1)
	}

	mac := hmac.New(sha256.New, []byte(*secret))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	if *sample {
		fmt.Printf("Body: %s\n", body)
	}
	fmt.Printf("X-Signature: %s\n", signature)
}
