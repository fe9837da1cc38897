package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// CoreMemoryStore is the data access layer for persona/human/scratch memory
// blocks and their version history.
type CoreMemoryStore struct {
	db Queryer
}

// NewCoreMemoryStore creates a CoreMemoryStore.
func NewCoreMemoryStore(db Queryer) *CoreMemoryStore {
	return &CoreMemoryStore{db: db}
}

// GetOrCreateUserBlock fetches the user-scoped block of a type, creating an
// empty one if it doesn't exist yet.
func (s *CoreMemoryStore) GetOrCreateUserBlock(ctx context.Context, db *sql.DB, userID, blockType string, charLimit int, now time.Time) (*CoreMemoryBlock, error) {
	return s.getOrCreate(ctx, db, userID, nil, blockType, charLimit, now)
}

// GetOrCreateSessionBlock fetches the session-scoped block of a type,
// creating an empty one if it doesn't exist yet.
func (s *CoreMemoryStore) GetOrCreateSessionBlock(ctx context.Context, db *sql.DB, userID, sessionID, blockType string, charLimit int, now time.Time) (*CoreMemoryBlock, error) {
	return s.getOrCreate(ctx, db, userID, &sessionID, blockType, charLimit, now)
}

func (s *CoreMemoryStore) getOrCreate(ctx context.Context, db *sql.DB, userID string, sessionID *string, blockType string, charLimit int, now time.Time) (*CoreMemoryBlock, error) {
	var existing *CoreMemoryBlock
	var err error
	if sessionID == nil {
		existing, err = s.getUserBlock(ctx, userID, blockType)
	} else {
		existing, err = s.getSessionBlock(ctx, *sessionID, blockType)
	}
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	id := newID()
	_, err = db.ExecContext(ctx, `
		INSERT INTO core_memory_blocks (id, user_id, session_id, block_type, content, char_limit, current_version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,'',$5,1,$6,$6)
		ON CONFLICT DO NOTHING
	`, id, userID, sessionID, blockType, charLimit, now)
	if err != nil {
		return nil, fmt.Errorf("create core memory block: %w", err)
	}

	if sessionID == nil {
		return s.getUserBlock(ctx, userID, blockType)
	}
	return s.getSessionBlock(ctx, *sessionID, blockType)
}

func (s *CoreMemoryStore) getUserBlock(ctx context.Context, userID, blockType string) (*CoreMemoryBlock, error) {
	row := s.db.QueryRowContext(ctx, coreMemoryBlockSelect+`
		WHERE user_id = $1 AND block_type = $2 AND session_id IS NULL
	`, userID, blockType)
	return scanCoreMemoryBlock(row)
}

func (s *CoreMemoryStore) getSessionBlock(ctx context.Context, sessionID, blockType string) (*CoreMemoryBlock, error) {
	row := s.db.QueryRowContext(ctx, coreMemoryBlockSelect+`
		WHERE session_id = $1 AND block_type = $2
	`, sessionID, blockType)
	return scanCoreMemoryBlock(row)
}

// ApplyEdit writes a new version of a block's content under the row's lock,
// rejecting the write if expectedVersion no longer matches the current
// version — the optimistic-concurrency path for concurrent editors.
func (s *CoreMemoryStore) ApplyEdit(ctx context.Context, db *sql.DB, blockID string, expectedVersion int, newContent, changeKind, actor string, now time.Time) (*CoreMemoryBlock, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin edit tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, coreMemoryBlockSelect+` WHERE id = $1 FOR UPDATE`, blockID)
	block, err := scanCoreMemoryBlock(row)
	if err != nil {
		return nil, err
	}
	if block.CurrentVersion != expectedVersion {
		return nil, ErrVersionConflict
	}
	if len(newContent) > block.CharLimit {
		return nil, NewValidationError("content", fmt.Sprintf("exceeds char_limit %d", block.CharLimit))
	}

	nextVersion := block.CurrentVersion + 1
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO core_memory_versions (id, block_id, version, content, change_kind, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, newID(), blockID, nextVersion, newContent, changeKind, actor, now); err != nil {
		return nil, fmt.Errorf("insert memory version: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE core_memory_blocks SET content = $2, current_version = $3, updated_at = $4 WHERE id = $1
	`, blockID, newContent, nextVersion, now); err != nil {
		return nil, fmt.Errorf("update memory block: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit edit: %w", err)
	}

	block.Content = newContent
	block.CurrentVersion = nextVersion
	block.UpdatedAt = now
	return block, nil
}

// Rollback re-applies a historical version's content as a brand new version
// rather than rewinding current_version, so history stays append-only:
// editing at v, rolling back to targetVersion, then editing again produces
// versions v, v+1 (= content of targetVersion), v+2.
func (s *CoreMemoryStore) Rollback(ctx context.Context, db *sql.DB, blockID string, targetVersion int, actor string, now time.Time) (*CoreMemoryBlock, error) {
	versions, err := s.ListVersions(ctx, blockID)
	if err != nil {
		return nil, err
	}
	var target *CoreMemoryVersion
	for _, v := range versions {
		if v.Version == targetVersion {
			target = v
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: version %d", ErrNotFound, targetVersion)
	}

	row := s.db.QueryRowContext(ctx, coreMemoryBlockSelect+` WHERE id = $1`, blockID)
	block, err := scanCoreMemoryBlock(row)
	if err != nil {
		return nil, err
	}
	return s.ApplyEdit(ctx, db, blockID, block.CurrentVersion, target.Content, "rollback", actor, now)
}

// ListVersions returns a block's version history, newest first.
func (s *CoreMemoryStore) ListVersions(ctx context.Context, blockID string) ([]*CoreMemoryVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, block_id, version, content, change_kind, actor, created_at
		FROM core_memory_versions WHERE block_id = $1 ORDER BY version DESC
	`, blockID)
	if err != nil {
		return nil, fmt.Errorf("list memory versions: %w", err)
	}
	defer rows.Close()

	var out []*CoreMemoryVersion
	for rows.Next() {
		var v CoreMemoryVersion
		if err := rows.Scan(&v.ID, &v.BlockID, &v.Version, &v.Content, &v.ChangeKind, &v.Actor, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory version: %w", err)
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

const coreMemoryBlockSelect = `
	SELECT id, user_id, session_id, block_type, content, char_limit, current_version, created_at, updated_at
	FROM core_memory_blocks`

func scanCoreMemoryBlock(row rowScanner) (*CoreMemoryBlock, error) {
	var b CoreMemoryBlock
	err := row.Scan(&b.ID, &b.UserID, &b.SessionID, &b.BlockType, &b.Content, &b.CharLimit, &b.CurrentVersion, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan core memory block: %w", err)
	}
	return &b, nil
}

// ContradictionReviewStore is the data access layer for flagged
// claim/memory contradictions awaiting resolution.
type ContradictionReviewStore struct {
	db Queryer
}

// NewContradictionReviewStore creates a ContradictionReviewStore.
func NewContradictionReviewStore(db Queryer) *ContradictionReviewStore {
	return &ContradictionReviewStore{db: db}
}

// Create files a new contradiction for review with status=pending.
func (s *ContradictionReviewStore) Create(ctx context.Context, r *ContradictionReview) error {
	if r.ID == "" || r.UserID == "" || r.ExistingClaim == "" || r.NewClaim == "" {
		return NewValidationError("new_claim", "id, user_id, existing_claim and new_claim are required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contradiction_reviews
			(id, user_id, group_id, block_id, conversation_id, existing_claim, existing_fact_uuid,
			 new_claim, confidence, reason, source, context, entity_names, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,'pending')
	`, r.ID, r.UserID, r.GroupID, r.BlockID, r.ConversationID, r.ExistingClaim, r.ExistingFactUUID,
		r.NewClaim, r.Confidence, r.Reason, r.Source, r.Context, pq.Array(r.EntityNames))
	if err != nil {
		return fmt.Errorf("create contradiction review: %w", err)
	}
	return nil
}

// ListPendingForUser returns a user's unresolved contradiction reviews.
func (s *ContradictionReviewStore) ListPendingForUser(ctx context.Context, userID string) ([]*ContradictionReview, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, group_id, block_id, conversation_id, existing_claim, existing_fact_uuid,
		       new_claim, confidence, reason, source, context, entity_names, status, resolution_notes,
		       resolver, created_at, resolved_at
		FROM contradiction_reviews WHERE user_id = $1 AND status = 'pending' ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending contradictions: %w", err)
	}
	defer rows.Close()

	var out []*ContradictionReview
	for rows.Next() {
		r, err := scanContradictionReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get fetches one contradiction review by id.
func (s *ContradictionReviewStore) Get(ctx context.Context, id string) (*ContradictionReview, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, group_id, block_id, conversation_id, existing_claim, existing_fact_uuid,
		       new_claim, confidence, reason, source, context, entity_names, status, resolution_notes,
		       resolver, created_at, resolved_at
		FROM contradiction_reviews WHERE id = $1
	`, id)
	return scanContradictionReview(row)
}

func scanContradictionReview(row rowScanner) (*ContradictionReview, error) {
	var r ContradictionReview
	err := row.Scan(&r.ID, &r.UserID, &r.GroupID, &r.BlockID, &r.ConversationID, &r.ExistingClaim,
		&r.ExistingFactUUID, &r.NewClaim, &r.Confidence, &r.Reason, &r.Source, &r.Context,
		pq.Array(&r.EntityNames), &r.Status, &r.ResolutionNotes, &r.Resolver, &r.CreatedAt, &r.ResolvedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan contradiction review: %w", err)
	}
	return &r, nil
}

// Resolve transitions a review to one of {accepted-new, kept-old, kept-both,
// dismissed}, recording the resolver and a reason.
func (s *ContradictionReviewStore) Resolve(ctx context.Context, id, status, resolver, notes string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE contradiction_reviews
		SET status = $2, resolver = $3, resolution_notes = $4, resolved_at = $5
		WHERE id = $1 AND status = 'pending'
	`, id, status, resolver, notes, now)
	if err != nil {
		return fmt.Errorf("resolve contradiction review: %w", err)
	}
	return checkRowsAffected(res)
}
