package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"sage/internal/domain"
	"sage/internal/domain/submission"
	"sage/internal/infrastructure/storage/postgres"
)

const submissionsTable = "submissions"

// delayedPredicate marks submissions made after their catalog's deadline.
const delayedPredicate = "c.deadline IS NOT NULL AND s.submission_time > c.deadline"

// SubmissionRepo implements submission.Repository. Payloads above the codec
// threshold go to submitted_data_zstd instead of the jsonb column.
type SubmissionRepo struct {
	*postgres.Table[submission.Submission]
	codec *postgres.PayloadCodec
}

var _ submission.Repository = (*SubmissionRepo)(nil)

func NewSubmissionRepo(db postgres.QuerierSource, codec *postgres.PayloadCodec) *SubmissionRepo {
	return &SubmissionRepo{
		Table: postgres.NewTable[submission.Submission](db, submissionsTable, "submission", "domain"),
		codec: codec,
	}
}

func (r *SubmissionRepo) Create(ctx context.Context, s *submission.Submission) error {
	if s.SubmissionTime.IsZero() {
		s.SubmissionTime = time.Now().UTC()
	}
	raw, compressed, algo := r.codec.Encode(s.SubmittedData)

	data := postgres.StructToMap(s, "id")
	data["submitted_data"] = nullableJSON(raw)
	data["submitted_data_zstd"] = compressed
	data["compression_algo"] = string(algo)

	sql, args, err := postgres.Builder().Insert(submissionsTable).SetMap(data).Suffix("RETURNING id").ToSql()
	if err != nil {
		return fmt.Errorf("build insert submission: %w", err)
	}
	if err := r.Q(ctx).QueryRow(ctx, sql, args...).Scan(&s.ID); err != nil {
		return postgres.MapError("insert submission", "submission", "", err)
	}
	return nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

type storedSubmission struct {
	submission.Submission
	Raw        []byte `db:"submitted_data"`
	Compressed []byte `db:"submitted_data_zstd"`
	Algo       string `db:"compression_algo"`
}

// GetByID loads one submission with its decoded payload.
func (r *SubmissionRepo) GetByID(ctx context.Context, id int64) (*submission.Submission, error) {
	q := r.Select().
		Columns("submitted_data::text AS submitted_data", "submitted_data_zstd", "compression_algo").
		Where(squirrel.Eq{submissionsTable + ".id": id}).
		Limit(1)
	rows, err := postgres.SelectAll[storedSubmission](ctx, r.Q(ctx), q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, postgres.MapError("get submission", "submission", id, pgx.ErrNoRows)
	}

	st := rows[0]
	payload, err := r.codec.Decode(st.Raw, st.Compressed, postgres.Compression(st.Algo))
	if err != nil {
		return nil, err
	}
	st.Submission.SubmittedData = payload
	return &st.Submission, nil
}

func (r *SubmissionRepo) List(ctx context.Context, f submission.Filter) (domain.ListResult[*submission.Submission], error) {
	if f.OrderBy == "" {
		f.OrderBy = "-submission_time"
	}
	return r.Page(ctx, filterSubmissions(r.Select(), submissionsTable, f), f.ListFilter)
}

// filterSubmissions applies f to a query over the submissions table aliased as alias.
func filterSubmissions(q squirrel.SelectBuilder, alias string, f submission.Filter) squirrel.SelectBuilder {
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{alias + ".submission_time": *f.From})
	}
	if f.To != nil {
		q = q.Where(squirrel.LtOrEq{alias + ".submission_time": *f.To})
	}
	if f.Domain != "" {
		q = q.Where(squirrel.Eq{alias + ".domain": f.Domain})
	}
	if f.ProductID != nil {
		q = q.Where(squirrel.Eq{alias + ".product_id": *f.ProductID})
	}
	if f.UserID != "" {
		q = q.Where(squirrel.Eq{alias + ".submitted_by": f.UserID})
	}
	return q
}

func (r *SubmissionRepo) Count(ctx context.Context, f submission.Filter, since time.Time) (int64, error) {
	q := postgres.Builder().Select("COUNT(*)").From(submissionsTable + " s")
	q = filterSubmissions(q, "s", f)
	if !since.IsZero() {
		q = q.Where(squirrel.GtOrEq{"s.submission_time": since})
	}
	return r.count(ctx, q)
}

func (r *SubmissionRepo) CountDelayed(ctx context.Context, f submission.Filter) (int64, error) {
	q := postgres.Builder().Select("COUNT(*)").
		From(submissionsTable + " s").
		Join(catalogsTable + " c ON c.id = s.catalog_id").
		Where(delayedPredicate)
	return r.count(ctx, filterSubmissions(q, "s", f))
}

func (r *SubmissionRepo) count(ctx context.Context, q squirrel.SelectBuilder) (int64, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.Q(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, postgres.MapError("count submissions", "submission", "", err)
	}
	return n, nil
}

func entriesQuery() squirrel.SelectBuilder {
	return postgres.Builder().
		Select("s.id", "s.submission_time", "s.domain", "s.submitted_by", "c.status AS catalog_status").
		From(submissionsTable + " s").
		LeftJoin(catalogsTable + " c ON c.id = s.catalog_id").
		OrderBy("s.submission_time DESC", "s.id DESC")
}

func (r *SubmissionRepo) Latest(ctx context.Context, f submission.Filter, limit int) ([]submission.Entry, error) {
	q := filterSubmissions(entriesQuery(), "s", f).Limit(uint64(limit))
	return postgres.SelectAll[submission.Entry](ctx, r.Q(ctx), q)
}

func (r *SubmissionRepo) LatestDelayed(ctx context.Context, f submission.Filter, limit int) ([]submission.Entry, error) {
	q := filterSubmissions(entriesQuery().Where(delayedPredicate), "s", f).Limit(uint64(limit))
	return postgres.SelectAll[submission.Entry](ctx, r.Q(ctx), q)
}
