// Package storage defines where season results are persisted and the object layout
// shared by the file-like stores.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/JakeFAU/appearances-scraper/internal/roster"
)

// SeasonStore persists one club-season result.
type SeasonStore interface {
	SaveSeason(ctx context.Context, result roster.SeasonResult) error
}

// NoOp is a SeasonStore that discards results.
type NoOp struct{}

// SaveSeason does nothing and always returns nil.
func (NoOp) SaveSeason(context.Context, roster.SeasonResult) error {
	return nil
}

// Multi fans a result out to every store and joins their errors.
type Multi []SeasonStore

// SaveSeason saves to each store in order; one failing store does not skip the others.
// Each error names the store that produced it.
func (m Multi) SaveSeason(ctx context.Context, result roster.SeasonResult) error {
	var errs []error
	for _, s := range m {
		if err := s.SaveSeason(ctx, result); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", StoreName(s), err))
		}
	}
	return errors.Join(errs...)
}

// StoreName identifies a store in logs and errors.
func StoreName(s SeasonStore) string {
	if n, ok := s.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}

// Object is one file of a persisted season.
type Object struct {
	Path        string
	ContentType string
	Data        []byte
}

// Objects lays a result out as files under its club directory:
// <slug>/<YYYY_YYYY>_players.txt, <slug>/<YYYY_YYYY>_data.json and, for debug
// results, <slug>/<YYYY_YYYY>_debug.html.
func Objects(result roster.SeasonResult) ([]Object, error) {
	if result.ClubSlug == "" || result.Season == "" {
		return nil, fmt.Errorf("result is missing club slug or season")
	}
	stem := path.Join(result.ClubSlug, result.Season.FileStem())

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal season result: %w", err)
	}

	var objects []Object
	if len(result.Players) > 0 {
		objects = append(objects, Object{
			Path:        stem + "_players.txt",
			ContentType: "text/plain; charset=utf-8",
			Data:        PlayersText(result.Players),
		})
	}
	objects = append(objects, Object{
		Path:        stem + "_data.json",
		ContentType: "application/json",
		Data:        data,
	})
	if result.Debug && result.Markup != "" {
		objects = append(objects, Object{
			Path:        stem + "_debug.html",
			ContentType: "text/html; charset=utf-8",
			Data:        []byte(result.Markup),
		})
	}
	return objects, nil
}

// PlayersText renders one "<name> - <n> apps" line per player.
func PlayersText(players []roster.PlayerRecord) []byte {
	var b strings.Builder
	for _, p := range players {
		fmt.Fprintf(&b, "%s - %d apps\n", p.Name, p.Appearances)
	}
	return []byte(b.String())
}
