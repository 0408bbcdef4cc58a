package s3

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"

	"github.com/complygraph/complygraph/pkg/errors"
)

/*
Repository reads business profiles and counts evidence artifacts. Profiles
live at profiles/<id>.json; every object under evidence/<id>/ counts as one
artifact.
*/
type Repository struct {
	conn *Conn
}

func NewRepository(conn *Conn) *Repository {
	return &Repository{conn: conn}
}

func (repo *Repository) GetBusinessProfile(ctx context.Context, id string) (map[string]any, error) {
	buf, err := repo.conn.Get(ctx, "profiles/"+id+".json")

	if err != nil {
		log.Error("failed to get business profile", "id", id, "error", err)
		return nil, errors.ErrNotFound.WithMessagef("business profile %s", id)
	}

	var profile map[string]any

	if err := json.Unmarshal(buf.Bytes(), &profile); err != nil {
		return nil, errors.ErrValidation.WithMessagef("malformed business profile %s: %v", id, err)
	}

	return profile, nil
}

func (repo *Repository) CountEvidence(ctx context.Context, profileID string) (int, error) {
	count, err := repo.conn.Count(ctx, "evidence/"+profileID+"/")

	if err != nil {
		log.Error("failed to count evidence", "profile", profileID, "error", err)
		return 0, errors.ErrNotFound.WithMessagef("evidence for profile %s", profileID)
	}

	return count, nil
}

// PutBusinessProfile stores or replaces a profile document.
func (repo *Repository) PutBusinessProfile(ctx context.Context, id string, profile map[string]any) error {
	data, err := json.Marshal(profile)

	if err != nil {
		return errors.ErrValidation.WithMessagef("unencodable business profile %s: %v", id, err)
	}

	return repo.conn.Put(ctx, "profiles/"+id+".json", bytes.NewReader(data), int64(len(data)))
}
