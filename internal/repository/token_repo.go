package repository

import (
	"context"

	"github.com/google/uuid"
)

// FcmTokenRepository manages the push-notification tokens mobile clients
// register per signed-in user.
type FcmTokenRepository struct {
	db DBTX
}

func NewFcmTokenRepository(db DBTX) *FcmTokenRepository {
	return &FcmTokenRepository{db: db}
}

// Upsert registers a device token for a user. Re-registering the same token
// moves it to the new owner, which handles shared devices switching accounts.
func (r *FcmTokenRepository) Upsert(ctx context.Context, userID uuid.UUID, token string) error {
	_, err := r.db.Exec(
		ctx,
		`INSERT INTO fcm_tokens (user_id, token)
		 VALUES ($1, $2)
		 ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, created_at = NOW()`,
		userID,
		token,
	)
	return err
}

func (r *FcmTokenRepository) ListByUserIDs(
	ctx context.Context,
	userIDs []uuid.UUID,
) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	query := `SELECT token FROM fcm_tokens WHERE user_id = ANY($1)`
	rows, err := r.db.Query(ctx, query, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := make([]string, 0)
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tokens, nil
}

func (r *FcmTokenRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM fcm_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
