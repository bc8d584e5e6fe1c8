// Package domain holds the small pieces of administrative reference data
// shared by every concrete domain (jpost, manholecard): the prefecture
// roster each domain's per-owner tasks are enumerated against, grounded
// on original_source/models/administration.py's Prefecture model.
package domain

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Prefecture is one of Japan's 47 administrative prefectures.
type Prefecture struct {
	ID       int64  `db:"id"`
	PrefID   int64  `db:"pref_id"`
	Name     string `db:"name"`
	FullName string `db:"full_name"`
	EnName   string `db:"en_name"`
	JpostURL string `db:"jpost_url"`
}

// PrefectureLister enumerates the prefectures domains schedule per-owner
// work against. SQLPrefectureLister is the production implementation;
// tests substitute a fixed slice.
type PrefectureLister interface {
	List(ctx context.Context) ([]Prefecture, error)
}

// SQLPrefectureLister reads the prefecture roster from the application
// database's own `prefecture` table.
type SQLPrefectureLister struct {
	DB *sqlx.DB
}

func (l *SQLPrefectureLister) List(ctx context.Context) ([]Prefecture, error) {
	var prefs []Prefecture
	err := l.DB.SelectContext(ctx, &prefs,
		`SELECT id, pref_id, name, full_name, en_name, jpost_url FROM prefecture ORDER BY pref_id`)
	return prefs, err
}

// OwnerNames adapts a PrefectureLister to task.Registry's OwnerEnumerator
// shape: one owner name (the prefecture's English name) per prefecture.
func OwnerNames(lister PrefectureLister) func(ctx context.Context) ([]string, error) {
	return func(ctx context.Context) ([]string, error) {
		prefs, err := lister.List(ctx)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(prefs))
		for _, p := range prefs {
			names = append(names, p.EnName)
		}
		return names, nil
	}
}
