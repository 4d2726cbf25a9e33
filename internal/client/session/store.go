package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Satyam1603/GoTogether/internal/client/client"
	"github.com/Satyam1603/GoTogether/internal/client/repositories/metadata"
	"github.com/Satyam1603/GoTogether/internal/common"
	"github.com/Satyam1603/GoTogether/internal/dbx"
)

const (
	keyID      = "session.id"
	keyAccess  = "session.access_token"
	keyRefresh = "session.refresh_token"
	keyUser    = "session.user"
)

var sessionKeys = []string{keyID, keyAccess, keyRefresh, keyUser}

// Session is the token pair and user snapshot held by the client.
type Session struct {
	ID           string
	User         *client.User
	AccessToken  string
	RefreshToken string
}

// Store persists the current session between runs.
type Store interface {
	// Load returns nil, nil when nothing is stored.
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error
}

// SQLiteStore keeps the session in the metadata table.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) repo(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}

func (s *SQLiteStore) Load(ctx context.Context) (*Session, error) {
	r := s.repo(s.db)

	values := make(map[string][]byte, len(sessionKeys))
	for _, k := range sessionKeys {
		v, err := r.Get(ctx, k)
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		values[k] = v
	}

	var u client.User
	if err := json.Unmarshal(values[keyUser], &u); err != nil {
		return nil, fmt.Errorf("decode stored user: %w", err)
	}

	return &Session{
		ID:           string(values[keyID]),
		User:         &u,
		AccessToken:  string(values[keyAccess]),
		RefreshToken: string(values[keyRefresh]),
	}, nil
}

// Save writes every field in one transaction so a crash never leaves a
// half-rotated token pair behind.
func (s *SQLiteStore) Save(ctx context.Context, sess *Session) error {
	user, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		r := s.repo(tx)
		for k, v := range map[string][]byte{
			keyID:      []byte(sess.ID),
			keyAccess:  []byte(sess.AccessToken),
			keyRefresh: []byte(sess.RefreshToken),
			keyUser:    user,
		} {
			if err := r.Set(ctx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	return s.repo(s.db).Delete(ctx, sessionKeys...)
}
