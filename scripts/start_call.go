package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Starts an outbound call through a running voxcall server.

func main() {
	server := flag.String("server", "http://localhost:8080", "")
	to := flag.String("to", "", "")
	voice := flag.String("voice", "", "")
	message := flag.String("message", "", "")
	flag.Parse()
	if *to == "" {
		fmt.Println("usage: start_call -to=+123 [-voice=alice] [-message=...] [-server=http://host:port]")
		os.Exit(1)
	}

	body, _ := json.Marshal(map[string]string{
		"to":      *to,
		"voice":   *voice,
		"message": *message,
	})
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(*server+"/twilio/start", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Println("call error:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		fmt.Println("call error:", resp.Status, string(out))
		os.Exit(1)
	}
	fmt.Println(string(out))
}
