package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"

	boltApp "github.com/shhac/bolt/internal/app"
	"github.com/shhac/bolt/internal/bridge"
	"github.com/shhac/bolt/internal/domain"
	apperrors "github.com/shhac/bolt/internal/errors"
	"github.com/shhac/bolt/internal/model"
	"github.com/shhac/bolt/internal/storage"
	"github.com/shhac/bolt/internal/transport"
)

type runFunc func(ctx context.Context, a *boltApp.App, args []string, stdout io.Writer) error

type command struct {
	summary string
	// setup registers the command's flags and returns its body
	setup func(fs *pflag.FlagSet) runFunc
}

var commands = map[string]command{
	"send": {
		summary: "dispatch one request and print the raw response",
		setup:   setupSend,
	},
	"save": {
		summary: "push a workspace snapshot file to the backend",
		setup:   setupSave,
	},
	"restore": {
		summary: "fetch the saved workspace from the backend",
		setup:   setupRestore,
	},
	"open": {
		summary: "ask the backend to open a link",
		setup:   setupOpen,
	},
}

func setupSend(fs *pflag.FlagSet) runFunc {
	method := fs.StringP("method", "X", "get", "request method selector (get, post, put, delete, head, patch, options, connect)")
	headers := fs.StringArrayP("header", "H", nil, "request header as key=value (repeatable)")
	params := fs.StringArrayP("param", "p", nil, "query parameter as key=value (repeatable)")
	body := fs.StringP("body", "d", "", "request body")
	index := fs.Int("index", 0, "correlation index")
	wait := fs.Duration("wait", 30*time.Second, "how long to wait for the response")

	return func(ctx context.Context, a *boltApp.App, args []string, stdout io.Writer) error {
		if len(args) != 1 {
			return apperrors.UserInputError{Field: "url", Message: "send takes exactly one URL argument"}
		}

		headerPairs, err := parsePairs("header", *headers)
		if err != nil {
			return err
		}
		paramPairs, err := parsePairs("param", *params)
		if err != nil {
			return err
		}

		// An unknown selector is an input error here, not a silent GET
		resolved, err := bridge.ParseMethod(strings.ToLower(strings.TrimSpace(*method)))
		if err != nil {
			return err
		}

		req := domain.ComposedRequest{
			URL:     args[0],
			Method:  resolved,
			Body:    *body,
			Headers: headerPairs,
			Params:  paramPairs,
			Index:   *index,
		}

		results := make(chan model.Update, 1)
		cancel := a.Bus().Subscribe(func(u model.Update) {
			matched := (u.Kind == model.UpdateResponse && u.Response.Index == req.Index) ||
				(u.Kind == model.UpdateError && u.Op == transport.OpSendRequest)
			if !matched {
				return
			}
			select {
			case results <- u:
			default:
			}
		})
		defer cancel()

		if err := a.Dispatcher().Dispatch(req); err != nil {
			return err
		}

		ctx, stop := context.WithTimeout(ctx, *wait)
		defer stop()

		select {
		case u := <-results:
			if u.Kind == model.UpdateError {
				return u.Err
			}
			fmt.Fprintln(stdout, u.Response.Raw)
			return nil
		case <-ctx.Done():
			return fmt.Errorf("no response for index %d: %w", req.Index, ctx.Err())
		}
	}
}

func parsePairs(field string, raw []string) ([]domain.Pair, error) {
	pairs := make([]domain.Pair, 0, len(raw))
	for _, item := range raw {
		key, value, ok := strings.Cut(item, "=")
		if !ok {
			return nil, apperrors.UserInputError{Field: field, Value: item, Message: "expected key=value"}
		}
		pairs = append(pairs, domain.Pair{Key: strings.TrimSpace(key), Value: value})
	}
	return pairs, nil
}

func setupSave(fs *pflag.FlagSet) runFunc {
	file := fs.StringP("file", "f", "", "snapshot file to push (required)")

	return func(ctx context.Context, a *boltApp.App, _ []string, stdout io.Writer) error {
		if *file == "" {
			return apperrors.UserInputError{Field: "file", Message: "--file is required"}
		}
		snapshot, err := storage.NewSnapshotFile(*file, a.Logger())
		if err != nil {
			return err
		}
		ws, err := snapshot.Read()
		if err != nil {
			return err
		}

		a.Store().Replace(ws)
		if err := a.Store().SaveNow(ctx); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "saved workspace from %s\n", snapshot.Path())
		return nil
	}
}

func setupRestore(fs *pflag.FlagSet) runFunc {
	file := fs.StringP("file", "f", "", "write the snapshot to this file instead of stdout")

	return func(ctx context.Context, a *boltApp.App, _ []string, stdout io.Writer) error {
		if err := a.Store().RestoreNow(ctx); err != nil {
			return err
		}
		ws := a.Store().Snapshot()

		if *file != "" {
			snapshot, err := storage.NewSnapshotFile(*file, a.Logger())
			if err != nil {
				return err
			}
			if err := snapshot.Write(ws); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "restored workspace to %s\n", snapshot.Path())
			return nil
		}

		data, err := json.MarshalIndent(ws, "", "  ")
		if err != nil {
			return fmt.Errorf("encode workspace: %w", err)
		}
		fmt.Fprintln(stdout, string(data))
		return nil
	}
}

func setupOpen(*pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *boltApp.App, args []string, stdout io.Writer) error {
		if len(args) != 1 {
			return apperrors.UserInputError{Field: "link", Message: "open takes exactly one link argument"}
		}
		return a.Transport().OpenLink(ctx, args[0])
	}
}
