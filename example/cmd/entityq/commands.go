package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore"
)

var (
	ErrInvalidFilter = errors.New("filter must be a json array")
	ErrInvalidKey    = errors.New("key must be a json value")
)

const (
	flagFilter     = "filter"
	flagSort       = "sort"
	flagSelect     = "select"
	flagExpand     = "expand"
	flagSkip       = "skip"
	flagTake       = "take"
	flagTotalCount = "total-count"
)

var (
	inputJSON  = jsoniter.Config{UseNumber: true}.Froze()
	outputJSON = jsoniter.Config{EscapeHTML: false, SortMapKeys: true, IndentionStep: 2}.Froze()
)

// loadResult is the output document of the load command.
type loadResult struct {
	Data       []map[string]any `json:"data"`
	TotalCount *int             `json:"totalCount,omitempty"`
}

func newLoadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load entities matching the filter criteria",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(s *session, store *entitystore.Store) error {
				loadOptions, err := loadOptionsFrom(cmd)
				if err != nil {
					return err
				}

				entities, extra, err := store.Load(cmd.Context(), loadOptions)
				if err != nil {
					return err
				}

				result := loadResult{Data: make([]map[string]any, 0, len(entities))}
				for _, entity := range entities {
					result.Data = append(result.Data, entity.Values())
				}

				if totalCount, requested := extra.TotalCount(); requested {
					result.TotalCount = &totalCount
				}

				return s.print(result)
			})
		},
	}

	cmd.Flags().String(flagFilter, "", `filter criteria as json, e.g. '[["age",">",18],"and",["name","startswith","A"]]'`)
	cmd.Flags().StringSlice(flagSort, nil, "sort fields, a leading - sorts descending")
	cmd.Flags().StringSlice(flagSelect, nil, "fields to select")
	cmd.Flags().StringSlice(flagExpand, nil, "navigation properties to expand")
	cmd.Flags().Int(flagSkip, 0, "number of entities to skip")
	cmd.Flags().Int(flagTake, 0, "maximum number of entities, 0 for all")
	cmd.Flags().Bool(flagTotalCount, false, "also report the total count of matching entities")

	return cmd
}

func newCountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count entities matching the filter criteria",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(s *session, store *entitystore.Store) error {
				filter, err := filterFrom(cmd)
				if err != nil {
					return err
				}

				count, err := store.TotalCount(cmd.Context(), entitystore.LoadOptions{Filter: filter})
				if err != nil {
					return err
				}

				_, err = fmt.Fprintln(s.out, count)

				return err
			})
		},
	}

	cmd.Flags().String(flagFilter, "", "filter criteria as json")

	return cmd
}

func newGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Fetch one entity by key, printing null if there is none; composite keys are given as json object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *session, store *entitystore.Store) error {
				key, err := parseKey(args[0])
				if err != nil {
					return err
				}

				expand, err := cmd.Flags().GetStringSlice(flagExpand)
				if err != nil {
					return err
				}

				entity, err := store.ByKey(cmd.Context(), key, expand...)
				if err != nil {
					return err
				}

				if entity == nil {
					s.logger.InfoContext(cmd.Context(), "no entity with key", "key", args[0])
					return s.print(nil)
				}

				return s.print(entity.Values())
			})
		},
	}

	cmd.Flags().StringSlice(flagExpand, nil, "navigation properties to expand")

	return cmd
}

// withStore runs fn with a store over the configured engine and releases everything afterwards.
func withStore(cmd *cobra.Command, fn func(s *session, store *entitystore.Store) error) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close(cmd.Context())

	store, release, err := s.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer release()

	if err = fn(s, store); err != nil {
		s.logger.ErrorContext(cmd.Context(), "command failed", "command", cmd.Name(), "error", err)
		return err
	}

	return nil
}

func (s *session) print(document any) error {
	encoded, err := outputJSON.Marshal(document)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(s.out, string(encoded))

	return err
}

func loadOptionsFrom(cmd *cobra.Command) (entitystore.LoadOptions, error) {
	flags := cmd.Flags()

	filter, err := filterFrom(cmd)
	if err != nil {
		return entitystore.LoadOptions{}, err
	}

	sortFields, _ := flags.GetStringSlice(flagSort)
	selectFields, _ := flags.GetStringSlice(flagSelect)
	expand, _ := flags.GetStringSlice(flagExpand)
	skip, _ := flags.GetInt(flagSkip)
	take, _ := flags.GetInt(flagTake)
	totalCount, _ := flags.GetBool(flagTotalCount)

	sortOptions := make([]entitystore.SortOption, 0, len(sortFields))
	for _, field := range sortFields {
		name, desc := strings.CutPrefix(field, "-")
		sortOptions = append(sortOptions, entitystore.SortOption{Field: name, Desc: desc})
	}

	return entitystore.LoadOptions{
		Filter:            filter,
		Sort:              sortOptions,
		Select:            selectFields,
		Expand:            expand,
		Skip:              skip,
		Take:              take,
		RequireTotalCount: totalCount,
	}, nil
}

func filterFrom(cmd *cobra.Command) ([]any, error) {
	text, _ := cmd.Flags().GetString(flagFilter)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var decoded any
	if err := inputJSON.UnmarshalFromString(text, &decoded); err != nil {
		return nil, errors.Join(ErrInvalidFilter, err)
	}

	filter, ok := normalizeJSON(decoded).([]any)
	if !ok {
		return nil, ErrInvalidFilter
	}

	return filter, nil
}

// parseKey reads a json key value. Text that is no json is taken as a string key.
func parseKey(text string) (any, error) {
	var decoded any
	if err := inputJSON.UnmarshalFromString(text, &decoded); err != nil {
		return text, nil
	}

	switch key := normalizeJSON(decoded).(type) {
	case []any:
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, text)
	default:
		return key, nil
	}
}

// normalizeJSON turns json numbers into int64 where they are integral and float64 otherwise.
func normalizeJSON(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}

		f, _ := v.Float64()

		return f
	case []any:
		for i := range v {
			v[i] = normalizeJSON(v[i])
		}

		return v
	case map[string]any:
		for name := range v {
			v[name] = normalizeJSON(v[name])
		}

		return v
	default:
		return v
	}
}
