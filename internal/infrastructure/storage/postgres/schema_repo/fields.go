package schema_repo

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"

	"sage/internal/core/apperror"
	"sage/internal/domain/schema"
	"sage/internal/infrastructure/storage/postgres"
)

const (
	fieldsTable = "product_fields"
	rulesTable  = "validation_rules"
)

// FieldRepo implements schema.FieldRepository. Reads attach each field's rule.
type FieldRepo struct {
	*postgres.Table[schema.Field]
	rules *postgres.Table[schema.ValidationRule]
}

var _ schema.FieldRepository = (*FieldRepo)(nil)

func NewFieldRepo(db postgres.QuerierSource) *FieldRepo {
	return &FieldRepo{
		Table: postgres.NewTable[schema.Field](db, fieldsTable, "field", "name"),
		rules: postgres.NewTable[schema.ValidationRule](db, rulesTable, "validation rule"),
	}
}

func (r *FieldRepo) Create(ctx context.Context, f *schema.Field) error {
	now := time.Now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now
	id, err := r.Insert(ctx, f)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("field", "name", f.Name)
		}
		return err
	}
	f.ID = id
	return nil
}

func (r *FieldRepo) GetByID(ctx context.Context, productID, fieldID int64) (*schema.Field, error) {
	f, err := r.Get(ctx, r.Select().Where(squirrel.Eq{
		fieldsTable + ".id":         fieldID,
		fieldsTable + ".product_id": productID,
	}), fieldID)
	if err != nil {
		return nil, err
	}
	if err := r.attachRules(ctx, []*schema.Field{f}); err != nil {
		return nil, err
	}
	return f, nil
}

func (r *FieldRepo) Update(ctx context.Context, f *schema.Field) error {
	f.UpdatedAt = time.Now().UTC()
	err := r.UpdateMap(ctx,
		squirrel.Eq{"id": f.ID, "product_id": f.ProductID}, f.ID,
		postgres.StructToMap(f, "id", "product_id", "created_at"))
	if postgres.IsUniqueViolation(err) {
		return apperror.NewDuplicate("field", "name", f.Name)
	}
	return err
}

func (r *FieldRepo) Delete(ctx context.Context, productID, fieldID int64) error {
	return r.Table.Delete(ctx, squirrel.Eq{"id": fieldID, "product_id": productID}, fieldID)
}

func (r *FieldRepo) ListByProduct(ctx context.Context, productID int64) ([]*schema.Field, error) {
	fields, err := r.All(ctx, fieldsByProduct(r.Select(), productID))
	if err != nil {
		return nil, err
	}
	if err := r.attachRules(ctx, fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func fieldsByProduct(q squirrel.SelectBuilder, productID int64) squirrel.SelectBuilder {
	return q.Where(squirrel.Eq{fieldsTable + ".product_id": productID}).OrderBy(fieldsTable + ".id ASC")
}

func (r *FieldRepo) attachRules(ctx context.Context, fields []*schema.Field) error {
	if len(fields) == 0 {
		return nil
	}
	byID := make(map[int64]*schema.Field, len(fields))
	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		byID[f.ID] = f
		ids = append(ids, f.ID)
	}

	rules, err := r.rules.All(ctx, r.rules.Select().Where(squirrel.Eq{rulesTable + ".product_field_id": ids}))
	if err != nil {
		return err
	}
	for _, rule := range rules {
		if f, ok := byID[rule.FieldID]; ok {
			f.Rule = rule
		}
	}
	return nil
}

func (r *FieldRepo) ExistsByName(ctx context.Context, productID int64, name string, excludeID int64) (bool, error) {
	q := postgres.Builder().Select("1").From(fieldsTable).
		Where(squirrel.Eq{"product_id": productID, "name": name}).
		Where(squirrel.NotEq{"id": excludeID}).
		Prefix("SELECT EXISTS (").Suffix(")")
	sql, args, err := q.ToSql()
	if err != nil {
		return false, err
	}
	var exists bool
	if err := r.Q(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, postgres.MapError("field exists", "field", name, err)
	}
	return exists, nil
}

// RuleRepo implements schema.RuleRepository.
type RuleRepo struct {
	*postgres.Table[schema.ValidationRule]
}

var _ schema.RuleRepository = (*RuleRepo)(nil)

func NewRuleRepo(db postgres.QuerierSource) *RuleRepo {
	return &RuleRepo{postgres.NewTable[schema.ValidationRule](db, rulesTable, "validation rule")}
}

func (r *RuleRepo) Create(ctx context.Context, v *schema.ValidationRule) error {
	now := time.Now().UTC()
	v.CreatedAt, v.UpdatedAt = now, now
	id, err := r.Insert(ctx, v)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewConflict("field already has a validation rule").
				WithDetail("product_field", v.FieldID)
		}
		return err
	}
	v.ID = id
	return nil
}

func (r *RuleRepo) GetByID(ctx context.Context, fieldID, ruleID int64) (*schema.ValidationRule, error) {
	return r.Get(ctx, r.Select().Where(squirrel.Eq{
		rulesTable + ".id":               ruleID,
		rulesTable + ".product_field_id": fieldID,
	}), ruleID)
}

func (r *RuleRepo) GetByField(ctx context.Context, fieldID int64) (*schema.ValidationRule, error) {
	return r.Get(ctx, r.Select().Where(squirrel.Eq{rulesTable + ".product_field_id": fieldID}), fieldID)
}

func (r *RuleRepo) Update(ctx context.Context, v *schema.ValidationRule) error {
	v.UpdatedAt = time.Now().UTC()
	return r.UpdateMap(ctx,
		squirrel.Eq{"id": v.ID, "product_field_id": v.FieldID}, v.ID,
		postgres.StructToMap(v, "id", "product_field_id", "created_at"))
}

func (r *RuleRepo) Delete(ctx context.Context, fieldID, ruleID int64) error {
	return r.Table.Delete(ctx, squirrel.Eq{"id": ruleID, "product_field_id": fieldID}, ruleID)
}
