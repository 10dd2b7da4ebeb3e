// credstore manages the SQLite credential store read by the sqlite
// credential source.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alexflint/go-arg"

	"github.com/tjfontaine/authpipe/internal/adapters/credentials/sqlite"
)

type putCmd struct {
	Name  string        `arg:"positional,required" help:"credential name"`
	Token string        `arg:"positional,required" help:"token value"`
	TTL   time.Duration `arg:"--ttl" help:"expire the token after this duration"`
}

type getCmd struct {
	Name   string `arg:"positional,required" help:"credential name"`
	Reveal bool   `arg:"--reveal" help:"print the full token"`
}

type deleteCmd struct {
	Name string `arg:"positional,required" help:"credential name"`
}

type args struct {
	DB     string     `arg:"--db,env:AUTHPIPE_CREDENTIALS__SQLITE__PATH" default:"./data/credentials.db" help:"path to the credential database"`
	Put    *putCmd    `arg:"subcommand:put" help:"store or replace a token"`
	Get    *getCmd    `arg:"subcommand:get" help:"show a stored token"`
	Delete *deleteCmd `arg:"subcommand:delete" help:"remove a token"`
}

func (args) Description() string {
	return "credstore - manage tokens in the SQLite credential store"
}

func main() {
	var a args
	p := arg.MustParse(&a)
	if p.Subcommand() == nil {
		p.Fail("missing subcommand")
	}

	if err := run(context.Background(), a); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, a args) error {
	store, err := sqlite.New(a.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	switch {
	case a.Put != nil:
		var expires time.Time
		if a.Put.TTL > 0 {
			expires = time.Now().Add(a.Put.TTL)
		}
		if err := store.Put(ctx, a.Put.Name, a.Put.Token, expires); err != nil {
			return err
		}
		fmt.Printf("Stored credential %q\n", a.Put.Name)
		if !expires.IsZero() {
			fmt.Printf("Expires: %s\n", expires.Format(time.RFC3339))
		}
		fmt.Println("\nAdd this to your config.yaml:")
		fmt.Printf("  credentials:\n")
		fmt.Printf("    type: sqlite\n")
		fmt.Printf("    sqlite:\n")
		fmt.Printf("      path: %q\n", a.DB)
		fmt.Printf("      name: %q\n", a.Put.Name)

	case a.Get != nil:
		cred, err := store.Get(ctx, a.Get.Name)
		if err != nil && !errors.Is(err, sqlite.ErrExpired) {
			return err
		}
		token := mask(cred.Token)
		if a.Get.Reveal {
			token = cred.Token
		}
		fmt.Printf("Name: %s\n", cred.Name)
		fmt.Printf("Token: %s\n", token)
		fmt.Printf("Updated: %s\n", cred.UpdatedAt.Format(time.RFC3339))
		if !cred.ExpiresAt.IsZero() {
			status := "valid"
			if err != nil {
				status = "expired"
			}
			fmt.Printf("Expires: %s (%s)\n", cred.ExpiresAt.Format(time.RFC3339), status)
		}

	case a.Delete != nil:
		if err := store.Delete(ctx, a.Delete.Name); err != nil {
			return err
		}
		fmt.Printf("Deleted credential %q\n", a.Delete.Name)
	}
	return nil
}

func mask(token string) string {
	if len(token) <= 8 {
		return "********"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
