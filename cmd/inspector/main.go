// Command inspector prints the persisted vault state and recent events, or
// produces the caller headers for a signed control request.
//
//	inspector state
//	inspector events -limit 20 -type vault.trade.executed
//	inspector sign -key $KEY -method POST -path /v1/start -body '{}'
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/GoPolymarket/tradevault/internal/config"
	"github.com/GoPolymarket/tradevault/internal/middleware"
	"github.com/GoPolymarket/tradevault/internal/model"
	"github.com/GoPolymarket/tradevault/internal/repository"
	"github.com/GoPolymarket/tradevault/internal/signer"
	"github.com/GoPolymarket/tradevault/internal/vault"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "state":
		err = runState()
	case "events":
		err = runEvents(os.Args[2:])
	case "sign":
		err = runSign(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: inspector state | events [-limit n] [-type t] | sign -key k -method m -path p [-body b]")
}

type stores struct {
	load   func(ctx context.Context) (*vault.Snapshot, error)
	events func(ctx context.Context, filter model.EventFilter) ([]vault.Event, error)
}

func openStores() (*stores, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err != nil {
			return nil, err
		}
		return &stores{
			load:   repository.NewPostgresStateStore(db).Load,
			events: repository.NewPostgresEventRepo(db).List,
		}, nil
	}
	if cfg.Redis.Addr != "" {
		client, err := repository.NewRedisClient(cfg)
		if err != nil {
			return nil, err
		}
		return &stores{
			load:   repository.NewRedisStateStore(client, cfg.Redis.SnapshotKey).Load,
			events: repository.NewRedisEventRepo(client, cfg.Redis.EventListKey, cfg.Redis.EventListMax).List,
		}, nil
	}
	return nil, fmt.Errorf("no database.dsn or redis.addr configured")
}

func runState() error {
	s, err := openStores()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	snap, err := s.load(ctx)
	if err != nil {
		return err
	}
	if snap == nil {
		return fmt.Errorf("no vault state persisted yet")
	}
	return printJSON(snap)
}

func runEvents(args []string) error {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	limit := fs.Int("limit", 20, "number of events")
	eventType := fs.String("type", "", "only this event type")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := openStores()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	events, err := s.events(ctx, model.EventFilter{Type: *eventType, Limit: *limit})
	if err != nil {
		return err
	}
	return printJSON(events)
}

func runSign(args []string) error {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	key := fs.String("key", os.Getenv("TRADEVAULT_CONTROLLER_KEY"), "controller private key (hex)")
	method := fs.String("method", "POST", "HTTP method")
	path := fs.String("path", "", "request path, e.g. /v1/start")
	body := fs.String("body", "", "exact request body")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("-path is required")
	}
	wallet, err := signer.NewWallet(*key)
	if err != nil {
		return err
	}
	ts := time.Now().Unix()
	sig, err := wallet.SignMessage(signer.RequestMessage(*method, *path, ts, []byte(*body)))
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", middleware.HeaderCallerAddress, wallet.Address().Hex())
	fmt.Printf("%s: %s\n", middleware.HeaderCallerTimestamp, strconv.FormatInt(ts, 10))
	fmt.Printf("%s: %s\n", middleware.HeaderCallerSignature, sig)
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
