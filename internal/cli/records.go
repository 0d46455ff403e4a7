package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/chatflow/internal/repository"
	"github.com/aretw0/chatflow/pkg/ports"
)

// RecordKinds maps the names accepted by `session ls --kind` to key prefixes.
var RecordKinds = map[string]string{
	"run":         repository.RunPrefix,
	"participant": repository.ParticipantPrefix,
	"session":     repository.SessionPrefix,
}

// ListRecords returns the stored keys of the given kind, or of every kind
// when kind is empty.
func ListRecords(ctx context.Context, store ports.KeyLister, kind string) ([]string, error) {
	var prefixes []string
	if kind == "" {
		for _, p := range RecordKinds {
			prefixes = append(prefixes, p)
		}
	} else {
		p, ok := RecordKinds[kind]
		if !ok {
			return nil, fmt.Errorf("unknown record kind %q (want run, participant or session)", kind)
		}
		prefixes = []string{p}
	}

	var keys []string
	for _, p := range prefixes {
		found, err := store.List(ctx, p)
		if err != nil {
			return nil, err
		}
		keys = append(keys, found...)
	}
	sort.Strings(keys)
	return keys, nil
}

// InspectRecord returns the record stored under key as indented JSON.
func InspectRecord(ctx context.Context, store ports.KVStore, key string) (string, error) {
	raw, err := store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, []byte(raw), "", "  "); err != nil {
		return "", fmt.Errorf("record %s is not JSON: %w", key, err)
	}
	return out.String(), nil
}

// RemoveRecords deletes every key, continuing past failures.
func RemoveRecords(ctx context.Context, store ports.KVStore, keys ...string) error {
	var errs []error
	for _, k := range keys {
		if err := store.Delete(ctx, k); err != nil {
			errs = append(errs, fmt.Errorf("error removing %s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}
