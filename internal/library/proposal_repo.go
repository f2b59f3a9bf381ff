package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const proposalColumns = `
	p.id, p.scan_time, p.status, p.proposed_name, p.approved_at, p.target_path, p.message,
	m.id, m.original_path, m.file_name, m.parsed_title, m.media_type, m.title,
	m.year, m.season, m.episode, m.episode_title, m.resolution, m.codec`

const proposalFrom = ` FROM proposals p JOIN media_files m ON m.proposal_id = p.id`

// ProposalRepository handles proposal and media file database operations
type ProposalRepository struct {
	db  *DB
	now func() time.Time
}

// NewProposalRepository creates a new proposal repository
func NewProposalRepository(db *DB) *ProposalRepository {
	return &ProposalRepository{db: db, now: time.Now}
}

// Add persists a new proposal together with its source media file.
// Missing IDs, scan time and status are filled in.
func (r *ProposalRepository) Add(ctx context.Context, p *Proposal) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Source.ID == "" {
		p.Source.ID = uuid.NewString()
	}
	if p.ScanTime.IsZero() {
		p.ScanTime = r.now()
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	if !p.Status.Valid() {
		return ErrInvalidStatus
	}
	if strings.TrimSpace(p.ProposedName) == "" && p.Status != StatusError {
		return ErrEmptyProposedName
	}

	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, r.db.rebind(`
			INSERT INTO proposals (id, scan_time, status, proposed_name, source_path, approved_at, target_path, message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			p.ID, p.ScanTime.UnixNano(), string(p.Status), p.ProposedName, p.Source.OriginalPath,
			nullTime(p.ApprovedAt), nullString(p.TargetPath), nullString(p.Message),
		)
		if err != nil {
			return err
		}

		m := p.Source
		_, err = tx.ExecContext(ctx, r.db.rebind(`
			INSERT INTO media_files (id, proposal_id, original_path, file_name, parsed_title, media_type,
				title, year, season, episode, episode_title, resolution, codec)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			m.ID, p.ID, m.OriginalPath, m.FileName, nullString(m.ParsedTitle), string(mediaTypeOrMovie(m.Type)),
			nullString(m.Title), nullInt(m.Year), nullInt(m.Season), nullInt(m.Episode),
			nullString(m.EpisodeTitle), nullString(m.Resolution), nullString(m.Codec),
		)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePending
		}
		return fmt.Errorf("failed to add proposal: %w", err)
	}

	return nil
}

// GetByID retrieves a proposal by its ID. Returns nil when absent.
func (r *ProposalRepository) GetByID(ctx context.Context, id string) (*Proposal, error) {
	row := r.db.QueryRowContext(ctx, r.db.rebind(`SELECT`+proposalColumns+proposalFrom+` WHERE p.id = ?`), id)
	p, err := scanProposal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return p, nil
}

// GetBySourcePath returns the newest proposal for a source file, preferring
// the pending one when it exists. Returns nil when absent.
func (r *ProposalRepository) GetBySourcePath(ctx context.Context, path string) (*Proposal, error) {
	row := r.db.QueryRowContext(ctx, r.db.rebind(`SELECT`+proposalColumns+proposalFrom+`
		WHERE p.source_path = ?
		ORDER BY CASE WHEN p.status = 'pending' THEN 1 ELSE 0 END DESC, p.scan_time DESC
		LIMIT 1`), path)
	p, err := scanProposal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal by source path: %w", err)
	}
	return p, nil
}

// List returns all proposals in the requested order. Ties are broken by
// scan time, newest first.
func (r *ProposalRepository) List(ctx context.Context, sortBy SortKey, desc bool) ([]*Proposal, error) {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}

	var order string
	switch sortBy {
	case SortBySourcePath:
		order = "p.source_path " + dir + ", p.scan_time DESC"
	case SortByStatus:
		order = `CASE p.status WHEN 'approved' THEN 2 WHEN 'rejected' THEN 1 ELSE 0 END ` + dir + ", p.scan_time DESC"
	default:
		order = "p.scan_time " + dir
	}

	return r.query(ctx, `SELECT`+proposalColumns+proposalFrom+` ORDER BY `+order)
}

// ListPending returns pending proposals, newest first
func (r *ProposalRepository) ListPending(ctx context.Context) ([]*Proposal, error) {
	return r.query(ctx, `SELECT`+proposalColumns+proposalFrom+`
		WHERE p.status = 'pending' ORDER BY p.scan_time DESC`)
}

// ListHistory returns every non-pending proposal, newest first
func (r *ProposalRepository) ListHistory(ctx context.Context) ([]*Proposal, error) {
	return r.query(ctx, `SELECT`+proposalColumns+proposalFrom+`
		WHERE p.status <> 'pending' ORDER BY p.scan_time DESC`)
}

// Approve moves a pending proposal to approved. It reports false without
// error when the proposal is missing or no longer pending.
func (r *ProposalRepository) Approve(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.rebind(`
		UPDATE proposals SET status = ?, approved_at = ? WHERE id = ? AND status = ?`),
		string(StatusApproved), r.now().UnixNano(), id, string(StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("failed to approve proposal: %w", err)
	}
	return affected(res)
}

// Reject moves a pending proposal to rejected, with the same no-op rule as Approve.
func (r *ProposalRepository) Reject(ctx context.Context, id string) (bool, error) {
	return r.Transition(ctx, id, StatusPending, StatusRejected)
}

// Transition changes the status only if it currently equals from.
func (r *ProposalRepository) Transition(ctx context.Context, id string, from, to Status) (bool, error) {
	if !to.Valid() {
		return false, ErrInvalidStatus
	}
	res, err := r.db.ExecContext(ctx, r.db.rebind(`
		UPDATE proposals SET status = ? WHERE id = ? AND status = ?`),
		string(to), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition proposal: %w", err)
	}
	return affected(res)
}

// SetStatus overwrites the status unconditionally
func (r *ProposalRepository) SetStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	res, err := r.db.ExecContext(ctx, r.db.rebind(`UPDATE proposals SET status = ? WHERE id = ?`), string(status), id)
	if err != nil {
		return fmt.Errorf("failed to set proposal status: %w", err)
	}
	return requireAffected(res)
}

// RecordExecution stores the outcome of executing a proposal
func (r *ProposalRepository) RecordExecution(ctx context.Context, id string, status Status, targetPath, message string) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	res, err := r.db.ExecContext(ctx, r.db.rebind(`
		UPDATE proposals SET status = ?, target_path = ?, message = ? WHERE id = ?`),
		string(status), nullString(targetPath), nullString(message), id,
	)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}
	return requireAffected(res)
}

// UpdateProposedName edits the proposed name of a pending proposal
func (r *ProposalRepository) UpdateProposedName(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyProposedName
	}

	res, err := r.db.ExecContext(ctx, r.db.rebind(`
		UPDATE proposals SET proposed_name = ? WHERE id = ? AND status = ?`),
		name, id, string(StatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to update proposed name: %w", err)
	}

	ok, err := affected(res)
	if err != nil || ok {
		return err
	}

	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrProposalNotFound
	}
	return ErrNotPending
}

// Delete removes a proposal and its media file
func (r *ProposalRepository) Delete(ctx context.Context, id string) error {
	n, err := r.DeleteMany(ctx, []string{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProposalNotFound
	}
	return nil
}

// DeleteMany removes all listed proposals in a single transaction and
// returns how many existed.
func (r *ProposalRepository) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	var deleted int64
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.db.rebind(`DELETE FROM media_files WHERE proposal_id IN (`+placeholders+`)`), args...); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, r.db.rebind(`DELETE FROM proposals WHERE id IN (`+placeholders+`)`), args...)
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete proposals: %w", err)
	}

	return deleted, nil
}

// Clear removes every proposal
func (r *ProposalRepository) Clear(ctx context.Context) (int64, error) {
	var deleted int64
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM media_files`); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM proposals`)
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear proposals: %w", err)
	}
	return deleted, nil
}

// Stats counts proposals per status
func (r *ProposalRepository) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Counts: make(map[Status]int, len(AllStatuses))}
	for _, s := range AllStatuses {
		stats.Counts[s] = 0
	}

	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM proposals GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("failed to compute stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return stats, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats.Counts[Status(status)] = count
		stats.Total += count
	}

	return stats, rows.Err()
}

func (r *ProposalRepository) query(ctx context.Context, query string, args ...any) ([]*Proposal, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer rows.Close()

	proposals := []*Proposal{}
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		proposals = append(proposals, p)
	}

	return proposals, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProposal(s scanner) (*Proposal, error) {
	var (
		p                                Proposal
		scanTime                         int64
		status, mediaType                string
		approvedAt                       sql.NullInt64
		targetPath, message              sql.NullString
		parsedTitle, title, episodeTitle sql.NullString
		resolution, codec                sql.NullString
		year, season, episode            sql.NullInt64
	)

	err := s.Scan(
		&p.ID, &scanTime, &status, &p.ProposedName, &approvedAt, &targetPath, &message,
		&p.Source.ID, &p.Source.OriginalPath, &p.Source.FileName, &parsedTitle, &mediaType, &title,
		&year, &season, &episode, &episodeTitle, &resolution, &codec,
	)
	if err != nil {
		return nil, err
	}

	p.ScanTime = time.Unix(0, scanTime)
	p.Status = Status(status)
	if approvedAt.Valid {
		t := time.Unix(0, approvedAt.Int64)
		p.ApprovedAt = &t
	}
	p.TargetPath = targetPath.String
	p.Message = message.String

	p.Source.ParsedTitle = parsedTitle.String
	p.Source.Type = MediaType(mediaType)
	p.Source.Title = title.String
	p.Source.Year = intFromNull(year)
	p.Source.Season = intFromNull(season)
	p.Source.Episode = intFromNull(episode)
	p.Source.EpisodeTitle = episodeTitle.String
	p.Source.Resolution = resolution.String
	p.Source.Codec = codec.String

	return &p, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func requireAffected(res sql.Result) error {
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProposalNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func mediaTypeOrMovie(t MediaType) MediaType {
	if t == "" {
		return MediaTypeMovie
	}
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func intFromNull(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
