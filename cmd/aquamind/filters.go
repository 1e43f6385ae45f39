package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rpattn/aquamind/pkg/filter"
	"github.com/rpattn/aquamind/pkg/filterstate"
)

// parseFilterFlags turns "hall__in=1,2" or "hall=1,2" into a selection.
// An empty value clears the key. IDs are parsed as integers but not
// validated here.
func parseFilterFlags(values []string) (*filter.Map[int64], error) {
	m := filter.NewMap[int64]()
	for _, raw := range values {
		key, list, ok := strings.Cut(raw, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q: want key=id,id", raw)
		}
		if !strings.HasSuffix(key, "__in") {
			key += "__in"
		}
		ids := []int64{}
		for _, part := range strings.Split(list, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid filter %q: %q is not an integer", raw, part)
			}
			ids = append(ids, id)
		}
		existing, _ := m.Get(key)
		m.Set(key, append(existing, ids...))
	}
	return m, nil
}

func addFilterFlag(cmd *cobra.Command, target *[]string) {
	cmd.Flags().StringArrayVarP(target, "filter", "f", nil, "entity filter as key=id,id (repeatable), e.g. hall__in=1,2")
}

// buildState seeds a filter state from config and applies flag filters on
// top, so both are validated together.
func (a *app) buildState(flagValues []string) (*filterstate.State, error) {
	flagFilters, err := parseFilterFlags(flagValues)
	if err != nil {
		return nil, err
	}
	logger := a.logger.Named("filters")
	state := filterstate.New(filterstate.Config{
		InitialFilters: a.cfg.Filters.InitialFilters,
		DebounceDelay:  a.cfg.Filters.DebounceDelay,
		MaxRecommended: a.cfg.Filters.MaxRecommended,
		Logger:         logger,
		OnChange: func(formatted map[string]string) {
			logger.Debug("filters changed", zap.Any("filters", formatted))
		},
	})
	for key, ids := range flagFilters.All() {
		state.SetFilter(key, ids)
	}
	return state, nil
}

// closeState delivers the pending change notification before stopping
// the state's debounce timer.
func closeState(state *filterstate.State) {
	state.Flush()
	state.Close()
}

// reportState prints the summary, warnings and errors of state. It returns
// an error when any filter key is invalid.
func reportState(w io.Writer, state *filterstate.State) error {
	fmt.Fprintf(w, "Filters: %s\n", state.FilterSummary())

	warnings := state.Warnings()
	for _, key := range sortedKeys(warnings) {
		fmt.Fprintf(w, "Warning: %s: %s\n", key, warnings[key])
	}

	errs := state.Errors()
	if len(errs) == 0 {
		return nil
	}
	keys := sortedKeys(errs)
	for _, key := range keys {
		fmt.Fprintf(w, "Error: %s: %s\n", key, errs[key])
	}
	return fmt.Errorf("invalid filters: %s", strings.Join(keys, ", "))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
