package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/neodatsu/itercraft/internal/config"
	"github.com/neodatsu/itercraft/internal/slack"
)

func main() {
	fs := flag.NewFlagSet("slack-sign", flag.ExitOnError)
	text := fs.String("text", "", "Slash-command text, e.g. \"plan ec2\"")
	userID := fs.String("user", "U0000000000", "Slack user ID")
	channelID := fs.String("channel", "", "Slack channel ID")
	at := fs.Int64("at", 0, "Request timestamp in Unix seconds (default: now)")
	target := fs.String("url", "", "Print a curl command posting to this URL instead of the raw values")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: slack-sign -text \"<action> <module>\" [-user ID] [-channel ID] [-at UNIX] [-url URL]")
		fmt.Fprintln(os.Stderr, "Signs a slash-command body with SLACK_SIGNING_SECRET.")
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(config.ComponentSigner); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ts := *at
	if ts == 0 {
		ts = time.Now().Unix()
	}

	req := sign(cfg.SlackSigningSecret, ts, slack.SlashCommand{
		Command:   slack.SlashCommandName,
		Text:      *text,
		UserID:    *userID,
		ChannelID: *channelID,
	})

	if *target != "" {
		fmt.Println(req.curl(*target))
		return
	}
	req.print(os.Stdout)
}

type signedRequest struct {
	Timestamp string
	Signature string
	Body      string
}

func sign(secret string, ts int64, cmd slack.SlashCommand) signedRequest {
	timestamp := strconv.FormatInt(ts, 10)
	body := cmd.Encode()
	return signedRequest{
		Timestamp: timestamp,
		Signature: slack.Sign(secret, timestamp, []byte(body)),
		Body:      body,
	}
}

func (r signedRequest) print(w io.Writer) {
	fmt.Fprintf(w, "%s: %s\n", slack.HeaderTimestamp, r.Timestamp)
	fmt.Fprintf(w, "%s: %s\n", slack.HeaderSignature, r.Signature)
	fmt.Fprintf(w, "Body: %s\n", r.Body)
}

func (r signedRequest) curl(target string) string {
	return strings.Join([]string{
		"curl -sS -X POST " + shellQuote(target),
		"-H " + shellQuote("Content-Type: application/x-www-form-urlencoded"),
		"-H " + shellQuote(slack.HeaderTimestamp+": "+r.Timestamp),
		"-H " + shellQuote(slack.HeaderSignature+": "+r.Signature),
		"--data-raw " + shellQuote(r.Body),
	}, " \\\n  ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
