// ABOUTME: Operator CLI for pairlink-gateway account and pairing management
// ABOUTME: Talks to the HTTP API with bearer-token authentication

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"golang.org/x/term"
)

const banner = `
             _      _ _       _             _           _
 _ __   __ _(_)_ __| (_)_ __ | | __        /_\   _ __  (_)
| '_ \ / _' | | '__| | | '_ \| |/ / _____ //_\\ | '_ \ | |
| |_) | (_| | | |  | | | | | |   < |_____/  _  \| |_) || |
| .__/ \__,_|_|_|  |_|_|_| |_|_|\_\     \_/ \_/ | .__/ |_|
|_|                                             |_|
`

type accountJSON struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	PairingCode string  `json:"pairing_code"`
	PartnerID   *string `json:"partner_id"`
	CreatedAt   string  `json:"created_at"`
}

type loginJSON struct {
	Account accountJSON `json:"account"`
	Token   string      `json:"token"`
}

type claimJSON struct {
	PartnerID    string `json:"partner_id"`
	PartnerEmail string `json:"partner_email"`
	ChannelID    string `json:"channel_id"`
}

type entryJSON struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	SenderID  string `json:"sender_id"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
	Cursor    string `json:"cursor"`
}

type entriesJSON struct {
	Entries    []entryJSON `json:"entries"`
	NextCursor string      `json:"next_cursor"`
	HasMore    bool        `json:"has_more"`
}

type errorJSON struct {
	Error string `json:"error"`
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "register":
		err = cmdRegister(cfg, args)
	case "login":
		err = cmdLogin(cfg, args)
	case "me":
		err = cmdMe(cfg)
	case "claim":
		err = cmdClaim(cfg, args)
	case "send":
		err = cmdSend(cfg, args)
	case "ping":
		err = cmdPing(cfg)
	case "history":
		err = cmdHistory(cfg, args)
	case "watch":
		err = cmdWatch(cfg)
	case "status":
		err = cmdStatus(cfg)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: pairlink-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  register <email>        Create an account (prompts for password)")
	fmt.Println("  login <email>           Log in and save the session token")
	fmt.Println("  me                      Show your account and pairing code")
	fmt.Println("  claim <code>            Claim a partner's pairing code")
	fmt.Println("  send <message...>       Send a message to your partner")
	fmt.Println("  ping                    Send an attention ping")
	fmt.Println("  history [--limit N]     Show the pair channel history")
	fmt.Println("  watch                   Tail the pair channel live")
	fmt.Println("  status                  Check gateway health")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  PAIRLINK_URL            Gateway URL (default: http://localhost:8080)")
	fmt.Println("  PAIRLINK_TOKEN          Session token (overrides the saved one)")
	fmt.Println("  PAIRLINK_ADMIN_CONFIG   Config file path")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  pairlink-admin register alice@example.com")
	fmt.Println("  pairlink-admin login alice@example.com")
	fmt.Println("  pairlink-admin claim K7Q2PLM9")
	fmt.Println("  pairlink-admin send see you at eight")
	fmt.Println()
}

// apiRequest performs an HTTP request against the gateway and decodes the
// JSON response into out (if non-nil). Error responses become errors.
func apiRequest(cfg *Config, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, cfg.Gateway.URL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := cfg.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr errorJSON
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// promptPassword reads a password without echoing when stdin is a terminal.
func promptPassword(label string) (string, error) {
	fmt.Printf("%s: ", label)
	if term.IsTerminal(int(syscall.Stdin)) {
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(raw), nil
	}
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func cmdRegister(cfg *Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: pairlink-admin register <email>")
	}

	password, err := promptPassword("Password")
	if err != nil {
		return err
	}

	var account accountJSON
	err = apiRequest(cfg, http.MethodPost, "/api/register",
		map[string]string{"email": args[0], "password": password}, &account)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	green.Println("Account created.")
	fmt.Printf("  ID:           %s\n", account.ID)
	fmt.Printf("  Email:        %s\n", account.Email)
	fmt.Print("  Pairing code: ")
	cyan.Println(account.PairingCode)
	fmt.Println()
	fmt.Println("Share the pairing code with your partner, then:")
	fmt.Printf("  pairlink-admin login %s\n", account.Email)
	return nil
}

func cmdLogin(cfg *Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: pairlink-admin login <email>")
	}

	password, err := promptPassword("Password")
	if err != nil {
		return err
	}

	var resp loginJSON
	err = apiRequest(cfg, http.MethodPost, "/api/login",
		map[string]string{"email": args[0], "password": password}, &resp)
	if err != nil {
		return err
	}

	if err := cfg.saveToken(resp.Token); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("Logged in as %s\n", resp.Account.Email)
	fmt.Printf("Token saved to %s\n", cfg.Auth.TokenFile)
	return nil
}

func cmdMe(cfg *Config) error {
	var account accountJSON
	if err := apiRequest(cfg, http.MethodGet, "/api/me", nil, &account); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", account.ID)
	fmt.Fprintf(w, "Email:\t%s\n", account.Email)
	fmt.Fprintf(w, "Pairing code:\t%s\n", account.PairingCode)
	if account.PartnerID != nil {
		fmt.Fprintf(w, "Partner:\t%s\n", *account.PartnerID)
	} else {
		fmt.Fprintf(w, "Partner:\t(not paired)\n")
	}
	fmt.Fprintf(w, "Created:\t%s\n", account.CreatedAt)
	w.Flush()

	if account.PartnerID == nil {
		fmt.Println()
		fmt.Print("Share your code: ")
		cyan.Println(account.PairingCode)
	}
	return nil
}

func cmdClaim(cfg *Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: pairlink-admin claim <code>")
	}

	var resp claimJSON
	err := apiRequest(cfg, http.MethodPost, "/api/claim",
		map[string]string{"code": args[0]}, &resp)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("Paired with %s\n", resp.PartnerEmail)
	fmt.Printf("  Channel: %s\n", resp.ChannelID)
	return nil
}

func cmdSend(cfg *Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: pairlink-admin send <message...>")
	}

	var entry entryJSON
	err := apiRequest(cfg, http.MethodPost, "/api/send",
		map[string]string{"body": strings.Join(args, " ")}, &entry)
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Printf("Sent (%s)\n", entry.ID)
	return nil
}

func cmdPing(cfg *Config) error {
	if err := apiRequest(cfg, http.MethodPost, "/api/ping", nil, nil); err != nil {
		return err
	}
	color.New(color.FgGreen).Println("Ping sent")
	return nil
}

func cmdHistory(cfg *Config, args []string) error {
	limit := 50
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--limit" && i+1 < len(args):
			n, err := strconv.Atoi(args[i+1])
			if err != nil || n < 1 {
				return fmt.Errorf("--limit requires a positive number")
			}
			limit = n
			i++
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	var page entriesJSON
	err := apiRequest(cfg, http.MethodGet, fmt.Sprintf("/api/entries?limit=%d", limit), nil, &page)
	if err != nil {
		return err
	}

	if len(page.Entries) == 0 {
		fmt.Println("No entries yet.")
		return nil
	}

	for _, entry := range page.Entries {
		printEntry(entry)
	}
	if page.HasMore {
		color.New(color.Faint).Println("(older entries truncated; raise --limit)")
	}
	return nil
}

func printEntry(entry entryJSON) {
	gray := color.New(color.FgHiBlack)
	ts := entry.CreatedAt
	if parsed, err := time.Parse(time.RFC3339Nano, entry.CreatedAt); err == nil {
		ts = parsed.Local().Format("Jan 02 15:04:05")
	}

	gray.Printf("%s ", ts)
	color.New(color.FgCyan).Printf("%-10s ", shortID(entry.SenderID))
	if entry.Kind == "ping" {
		color.New(color.FgYellow).Println("* ping *")
		return
	}
	fmt.Println(entry.Body)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// cmdWatch tails the pair channel over SSE until interrupted.
func cmdWatch(cfg *Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.Gateway.URL+"/api/stream", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if token := cfg.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr errorJSON
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	color.New(color.Faint).Println("watching; ctrl-c to stop")

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var entry entryJSON
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &entry); err != nil {
			continue
		}
		if entry.ID == "" {
			// Not an entry event (e.g. the connected preamble)
			continue
		}
		printEntry(entry)
	}
	return scanner.Err()
}

func cmdStatus(cfg *Config) error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	cyan.Printf("Gateway: %s\n", cfg.Gateway.URL)

	fmt.Print("Health:  ")
	var health map[string]string
	if err := apiRequest(cfg, http.MethodGet, "/health", nil, &health); err != nil {
		color.Red("UNREACHABLE (%v)\n", err)
		return nil
	}
	green.Println("OK")

	fmt.Print("Auth:    ")
	var account accountJSON
	if err := apiRequest(cfg, http.MethodGet, "/api/me", nil, &account); err != nil {
		color.Red("not logged in (%v)\n", err)
		return nil
	}
	green.Printf("%s", account.Email)
	if account.PartnerID != nil {
		fmt.Print(" (paired)")
	} else {
		fmt.Print(" (waiting for partner)")
	}
	fmt.Println()
	return nil
}
