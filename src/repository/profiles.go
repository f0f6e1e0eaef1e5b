package repository

import (
	"context"

	app "silkyroad/src/app"
)

const profilesTable = "profiles"

type ProfileRepository struct {
	base *Client
}

func NewProfileRepository(base *Client) *ProfileRepository {
	return &ProfileRepository{base: base}
}

// Get returns the profile for id; a missing row yields an empty profile.
func (r *ProfileRepository) Get(ctx context.Context, id string) (*app.Profile, error) {
	var rows []app.Profile
	if err := r.base.selectRows(ctx, profilesTable, NewQuery().Select("*").Eq("id", id).Limit(1), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &app.Profile{ID: id}, nil
	}
	return &rows[0], nil
}

func (r *ProfileRepository) Upsert(ctx context.Context, profile app.Profile) (*app.Profile, error) {
	var rows []app.Profile
	err := r.base.insertRows(ctx, profilesTable, profile, "resolution=merge-duplicates,return=representation", &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &profile, nil
	}
	return &rows[0], nil
}
