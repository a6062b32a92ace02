package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/codyseavey/crypto-tracker/internal/database"
	"github.com/codyseavey/crypto-tracker/internal/models"
	"github.com/codyseavey/crypto-tracker/internal/services"
	"github.com/codyseavey/crypto-tracker/internal/storage"
)

const (
	actionImported = "imported"
	actionPresent  = "present"
	actionSkipped  = "skipped"
	actionError    = "error"
)

// browserDump holds the raw string values of the browser storages.
type browserDump struct {
	Local   map[string]string
	Session map[string]string
}

type importResult struct {
	Kind   string // "watchlist", "user" or "session"
	Key    string
	Action string
	Reason string
}

// parseDump accepts {"localStorage": {...}, "sessionStorage": {...}} or a
// flat object of localStorage keys. Values that are not strings are kept as
// their JSON text.
func parseDump(data []byte) (*browserDump, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, err
	}

	dump := &browserDump{Local: map[string]string{}, Session: map[string]string{}}
	local, hasLocal := top["localStorage"]
	session, hasSession := top["sessionStorage"]
	if !hasLocal && !hasSession {
		return dump, decodeStorage(data, dump.Local)
	}
	if hasLocal {
		if err := decodeStorage(local, dump.Local); err != nil {
			return nil, fmt.Errorf("localStorage: %w", err)
		}
	}
	if hasSession {
		if err := decodeStorage(session, dump.Session); err != nil {
			return nil, fmt.Errorf("sessionStorage: %w", err)
		}
	}
	return dump, nil
}

func decodeStorage(data []byte, into map[string]string) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			into[k] = s
		} else {
			into[k] = string(v)
		}
	}
	return nil
}

type importer struct {
	store   storage.Store
	apply   bool
	merge   bool
	dryRun  bool
	confirm func(email string) bool
	now     func() time.Time
}

func (imp *importer) run(ctx context.Context, dump *browserDump) []importResult {
	var results []importResult
	results = append(results, imp.importWatchlist(ctx, dump)...)
	results = append(results, imp.importUsers(ctx, dump)...)
	if r, ok := imp.importSession(ctx, dump); ok {
		results = append(results, r)
	}
	return results
}

func (imp *importer) importWatchlist(ctx context.Context, dump *browserDump) []importResult {
	raw, ok := dump.Local[database.WatchlistKey]
	if !ok {
		return nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return []importResult{{Kind: "watchlist", Key: database.WatchlistKey, Action: actionError, Reason: err.Error()}}
	}

	watchlist := services.NewWatchlistStore(imp.store)
	existing := map[string]bool{}
	for _, id := range watchlist.Load(ctx) {
		existing[id] = true
	}

	var results []importResult
	for _, id := range ids {
		if id == "" {
			continue
		}
		if existing[id] {
			results = append(results, importResult{Kind: "watchlist", Key: id, Action: actionPresent})
			continue
		}
		existing[id] = true
		if imp.apply {
			watchlist.Toggle(ctx, id)
		}
		fmt.Printf("  ✓ Watchlist: %s\n", id)
		results = append(results, importResult{Kind: "watchlist", Key: id, Action: actionImported})
	}
	return results
}

func (imp *importer) importUsers(ctx context.Context, dump *browserDump) []importResult {
	raw, ok := dump.Local[services.UsersKey]
	if !ok {
		return nil
	}

	var users map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		return []importResult{{Kind: "user", Key: services.UsersKey, Action: actionError, Reason: err.Error()}}
	}

	store := services.NewUserStore(imp.store)
	var results []importResult
	for email, record := range users {
		result := importResult{Kind: "user", Key: email}

		merge := imp.merge
		if _, err := store.Get(ctx, email); err == nil && !merge {
			switch {
			case imp.dryRun:
				result.Action = actionSkipped
				result.Reason = "already exists, would prompt in execute mode"
				results = append(results, result)
				continue
			case imp.confirm != nil && imp.confirm(email):
				merge = true
			default:
				result.Action = actionSkipped
				result.Reason = "already exists"
				results = append(results, result)
				continue
			}
		}

		doc, _ := json.Marshal(map[string]any{
			"version": services.ExportVersion,
			"user":    record,
		})

		if !imp.apply {
			result.Action = actionImported
			results = append(results, result)
			continue
		}

		if _, err := store.Import(ctx, doc, merge); err != nil {
			result.Action = actionError
			if errors.Is(err, services.ErrInvalidFormat) {
				result.Reason = "record has no email"
			} else {
				result.Reason = err.Error()
			}
		} else {
			result.Action = actionImported
			fmt.Printf("  ✓ User: %s\n", email)
		}
		results = append(results, result)
	}
	return results
}

// importSession restores a remembered session. Browser sessionStorage
// sessions are tab-scoped and are never carried over.
func (imp *importer) importSession(ctx context.Context, dump *browserDump) (importResult, bool) {
	raw, ok := dump.Local[services.SessionKey]
	if !ok {
		return importResult{}, false
	}
	result := importResult{Kind: "session", Key: services.SessionKey}

	var session models.SessionRecord
	if err := json.Unmarshal([]byte(raw), &session); err != nil || session.Token == "" {
		result.Action = actionError
		result.Reason = "unreadable session"
		return result, true
	}

	now := time.Now
	if imp.now != nil {
		now = imp.now
	}
	if session.Expired(now()) {
		result.Action = actionSkipped
		result.Reason = "session expired"
		return result, true
	}

	if imp.apply {
		if err := storage.SetJSON(ctx, imp.store, services.SessionKey, session); err != nil {
			result.Action = actionError
			result.Reason = err.Error()
			return result, true
		}
	}
	result.Action = actionImported
	return result, true
}
