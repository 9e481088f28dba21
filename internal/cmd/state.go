package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/Iron-Ham/statebridge/internal/errors"
	"github.com/Iron-Ham/statebridge/internal/statesync"
	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set <key> [field=value ...]",
	Short: "Merge fields into a state document",
	Long: `Merge fields into the state document <key>.

Values are parsed as JSON when possible and kept as strings otherwise, so
price=100 stores a number and side=long stores a string. Fields not named
are left untouched. --json supplies a whole object; field=value pairs are
applied on top of it.

Examples:
  statebridge set BTC/USDT price=64250.5 volume=12
  statebridge set BTC/USDT --json '{"signal":{"side":"long","score":0.8}}'
  statebridge set ETH/USDT regime=trending --collection signals`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSet,
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a state document as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var watchCmd = &cobra.Command{
	Use:   "watch <key>",
	Short: "Stream a state document as JSON lines",
	Long: `Print the state document <key> as one JSON line now and after every
change, until interrupted. Deletions are not printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var (
	setJSON         string
	stateCollection string
)

func init() {
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(watchCmd)

	setCmd.Flags().StringVar(&setJSON, "json", "", "JSON object to merge")
	for _, c := range []*cobra.Command{setCmd, getCmd, watchCmd} {
		c.Flags().StringVar(&stateCollection, "collection", "", "collection (default: state.collection)")
	}
}

func writeOptions() []statesync.WriteOption {
	if stateCollection == "" {
		return nil
	}
	return []statesync.WriteOption{statesync.WithCollection(stateCollection)}
}

// parsePayload builds a payload from --json and field=value arguments.
func parsePayload(jsonArg string, pairs []string) (map[string]any, error) {
	payload := make(map[string]any)
	if jsonArg != "" {
		if err := json.Unmarshal([]byte(jsonArg), &payload); err != nil {
			return nil, errors.NewValidationError("--json must be a JSON object").
				WithField("json").
				WithCause(err)
		}
		if payload == nil {
			return nil, errors.NewValidationError("--json must be a JSON object").
				WithField("json").
				WithValue("null")
		}
	}

	for _, pair := range pairs {
		field, raw, ok := strings.Cut(pair, "=")
		if !ok || field == "" {
			return nil, errors.NewValidationError("expected field=value").WithValue(pair)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		payload[field] = value
	}
	return payload, nil
}

func runSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	payload, err := parsePayload(setJSON, args[1:])
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		return fmt.Errorf("nothing to set: pass field=value arguments or --json")
	}

	mgr := newManager()
	defer mgr.Close()

	if err := mgr.UpdateState(cmd.Context(), key, payload, writeOptions()...); err != nil {
		return err
	}

	fields := make([]string, 0, len(payload))
	for f := range payload {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %s\n", key, strings.Join(fields, ", "))
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	mgr := newManager()
	defer mgr.Close()

	st, err := mgr.Store(cmd.Context())
	if err != nil {
		return err
	}
	collection := stateCollection
	if collection == "" {
		collection = mgr.Config().State.Collection
	}

	snap, err := st.Get(cmd.Context(), collection, key)
	if err != nil {
		return errors.NewStoreOperationError("get", err).WithDocument(collection, key)
	}
	if !snap.Exists {
		return errors.NewNotFoundError(collection, key)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(snap.Data)
}

func runWatch(cmd *cobra.Command, args []string) error {
	key := args[0]

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := newManager()
	defer mgr.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	sub, err := mgr.StreamUpdates(ctx, key, func(doc map[string]any) {
		if err := enc.Encode(doc); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed to encode document: %v\n", err)
		}
	}, writeOptions()...)
	if err != nil {
		return err
	}
	defer sub.Cancel()

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s/%s... (Ctrl+C to stop)\n", sub.Collection, sub.Key)

	select {
	case <-ctx.Done():
		return nil
	case <-sub.Done():
		return sub.Err()
	}
}
