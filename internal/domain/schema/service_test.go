package schema

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sage/internal/core/apperror"
	"sage/internal/core/fieldtype"
	"sage/internal/domain"
)

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memStore struct {
	products map[int64]*Product
	fields   map[int64]*Field
	rules    map[int64]*ValidationRule
	tables   map[int64]*TableInfo
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{
		products: map[int64]*Product{},
		fields:   map[int64]*Field{},
		rules:    map[int64]*ValidationRule{},
		tables:   map[int64]*TableInfo{},
	}
}

func (m *memStore) id() int64 { m.nextID++; return m.nextID }

type memProducts struct{ *memStore }

func (r memProducts) Create(_ context.Context, p *Product) error {
	p.ID = r.id()
	r.products[p.ID] = p
	return nil
}
func (r memProducts) GetByID(_ context.Context, id int64) (*Product, error) {
	if p, ok := r.products[id]; ok {
		return p, nil
	}
	return nil, apperror.NewNotFound("product", id)
}
func (r memProducts) Update(_ context.Context, p *Product) error { r.products[p.ID] = p; return nil }
func (r memProducts) Delete(_ context.Context, id int64) error   { delete(r.products, id); return nil }
func (r memProducts) List(context.Context, ProductFilter) (domain.ListResult[*Product], error) {
	return domain.ListResult[*Product]{}, nil
}
func (r memProducts) SetHomologated(_ context.Context, id int64, v bool) error {
	r.products[id].IsHomologated = v
	return nil
}

type memFields struct{ *memStore }

func (r memFields) Create(_ context.Context, f *Field) error {
	f.ID = r.id()
	r.fields[f.ID] = f
	return nil
}
func (r memFields) GetByID(_ context.Context, productID, id int64) (*Field, error) {
	if f, ok := r.fields[id]; ok && f.ProductID == productID {
		return f, nil
	}
	return nil, apperror.NewNotFound("product field", id)
}
func (r memFields) Update(_ context.Context, f *Field) error { r.fields[f.ID] = f; return nil }
func (r memFields) Delete(_ context.Context, _, id int64) error {
	delete(r.fields, id)
	return nil
}
func (r memFields) ListByProduct(_ context.Context, productID int64) ([]*Field, error) {
	var out []*Field
	for _, f := range r.fields {
		if f.ProductID == productID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
func (r memFields) ExistsByName(_ context.Context, productID int64, name string, exclude int64) (bool, error) {
	for _, f := range r.fields {
		if f.ProductID == productID && f.Name == name && f.ID != exclude {
			return true, nil
		}
	}
	return false, nil
}

type memRules struct{ *memStore }

func (r memRules) Create(_ context.Context, v *ValidationRule) error {
	v.ID = r.id()
	r.rules[v.ID] = v
	return nil
}
func (r memRules) GetByID(_ context.Context, fieldID, id int64) (*ValidationRule, error) {
	if v, ok := r.rules[id]; ok && v.FieldID == fieldID {
		return v, nil
	}
	return nil, apperror.NewNotFound("validation rule", id)
}
func (r memRules) GetByField(_ context.Context, fieldID int64) (*ValidationRule, error) {
	for _, v := range r.rules {
		if v.FieldID == fieldID {
			return v, nil
		}
	}
	return nil, apperror.NewNotFound("validation rule", fieldID)
}
func (r memRules) Update(_ context.Context, v *ValidationRule) error { r.rules[v.ID] = v; return nil }
func (r memRules) Delete(_ context.Context, _, id int64) error {
	delete(r.rules, id)
	return nil
}

type memTables struct{ *memStore }

func (r memTables) GetByProduct(_ context.Context, productID int64) (*TableInfo, error) {
	if t, ok := r.tables[productID]; ok {
		return t, nil
	}
	return nil, apperror.NewNotFound("product table", productID)
}
func (r memTables) CreateIfAbsent(_ context.Context, t *TableInfo) (bool, error) {
	if _, ok := r.tables[t.ProductID]; ok {
		return false, nil
	}
	r.tables[t.ProductID] = t
	return true, nil
}

type memUploads struct{ files []*UploadedFile }

func (r *memUploads) Create(_ context.Context, f *UploadedFile) error {
	f.ID = int64(len(r.files) + 1)
	r.files = append(r.files, f)
	return nil
}

func (r *memUploads) ListByCatalog(_ context.Context, catalogID int64) ([]*UploadedFile, error) {
	var out []*UploadedFile
	for _, f := range r.files {
		if f.CatalogID == catalogID {
			out = append(out, f)
		}
	}
	return out, nil
}

func newTestService() (*Service, *memStore) {
	m := newMemStore()
	svc := NewService(Config{
		Products:  memProducts{m},
		Fields:    memFields{m},
		Rules:     memRules{m},
		Tables:    memTables{m},
		Uploads:   &memUploads{},
		TxManager: passthroughTx{},
	})
	return svc, m
}

func seedProduct(t *testing.T, svc *Service) *Product {
	t.Helper()
	p := &Product{SchemaName: "Retail prices", Domain: "retail"}
	require.NoError(t, svc.CreateProduct(context.Background(), p))
	return p
}

func TestCreateField_RejectsUnsafeNames(t *testing.T) {
	svc, _ := newTestService()
	p := seedProduct(t, svc)

	for _, name := range []string{"unit price", "a;b", `x"y`, "o'k", "1abc", ""} {
		err := svc.CreateField(context.Background(), &Field{ProductID: p.ID, Name: name, FieldType: fieldtype.Varchar})
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidIdent), name)
	}
}

func TestCreateField_UnknownProduct(t *testing.T) {
	svc, _ := newTestService()
	err := svc.CreateField(context.Background(), &Field{ProductID: 99, Name: "sku", FieldType: fieldtype.Varchar})
	assert.True(t, apperror.IsNotFound(err))
}

func TestCreateField_DuplicateName(t *testing.T) {
	svc, _ := newTestService()
	p := seedProduct(t, svc)
	ctx := context.Background()

	require.NoError(t, svc.CreateField(ctx, &Field{ProductID: p.ID, Name: "sku", FieldType: fieldtype.Varchar, IsNull: true}))
	err := svc.CreateField(ctx, &Field{ProductID: p.ID, Name: "sku", FieldType: fieldtype.Int, IsNull: true})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
}

func TestCreateRule_RequiresField(t *testing.T) {
	svc, _ := newTestService()
	p := seedProduct(t, svc)

	err := svc.CreateRule(context.Background(), p.ID, &ValidationRule{FieldID: 404, IsUnique: true})
	assert.True(t, apperror.IsNotFound(err))
}

func TestCreateRule_OnePerField(t *testing.T) {
	svc, _ := newTestService()
	p := seedProduct(t, svc)
	ctx := context.Background()

	f := &Field{ProductID: p.ID, Name: "color", FieldType: fieldtype.Varchar, IsNull: true}
	require.NoError(t, svc.CreateField(ctx, f))

	values := "red,green,blue"
	require.NoError(t, svc.CreateRule(ctx, p.ID, &ValidationRule{FieldID: f.ID, IsPicklist: true, PicklistValues: &values}))
	err := svc.CreateRule(ctx, p.ID, &ValidationRule{FieldID: f.ID, IsUnique: true})
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))

	got, err := svc.GetField(ctx, p.ID, f.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Rule)
	assert.Equal(t, []string{"red", "green", "blue"}, got.Rule.Picklist())
}

func TestCreateRule_ExpressionChecked(t *testing.T) {
	m := newMemStore()
	svc := NewService(Config{
		Products: memProducts{m}, Fields: memFields{m}, Rules: memRules{m}, Tables: memTables{m},
		TxManager: passthroughTx{},
		Expression: func(expr string) error {
			return assert.AnError
		},
	})
	p := seedProduct(t, svc)
	ctx := context.Background()
	f := &Field{ProductID: p.ID, Name: "qty", FieldType: fieldtype.Int, IsNull: true}
	require.NoError(t, svc.CreateField(ctx, f))

	expr := "value >"
	err := svc.CreateRule(ctx, p.ID, &ValidationRule{FieldID: f.ID, CustomExpression: &expr})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestUpdateProduct_SchemaNameFrozenAfterMaterialization(t *testing.T) {
	svc, m := newTestService()
	p := seedProduct(t, svc)
	m.tables[p.ID] = &TableInfo{ProductID: p.ID, TableName: p.TableName()}

	renamed := *p
	renamed.SchemaName = "Wholesale prices"
	err := svc.UpdateProduct(context.Background(), &renamed)
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))

	described := *p
	described.Description = "weekly price list"
	assert.NoError(t, svc.UpdateProduct(context.Background(), &described))
}

func TestFieldConstraints_FlagsGateValues(t *testing.T) {
	minV, maxV, places, age := 0.0, 120.0, 2, 30
	format := "DD/MM/YYYY"
	f := &Field{
		FieldType: fieldtype.Decimal,
		Rule: &ValidationRule{
			HasMinMax: false, MinValue: &minV, MaxValue: &maxV,
			HasMaxDecimal: true, MaxDecimalPlaces: &places,
			HasDateFormat: false, DateFormat: &format,
			HasMaxDaysOfAge: false, MaxDaysOfAge: &age,
		},
	}
	c := f.Constraints(time.Now())
	assert.Nil(t, c.Min)
	assert.Nil(t, c.Max)
	assert.Equal(t, &places, c.MaxDecimals)
	assert.Empty(t, c.DateFormat)
	assert.Nil(t, c.MaxAgeDays)
}

func TestInPicklist(t *testing.T) {
	values := "red, green ,blue"
	r := &ValidationRule{IsPicklist: true, PicklistValues: &values}
	assert.True(t, r.InPicklist("green"))
	assert.False(t, r.InPicklist("Red"))

	r.PicklistCaseInsensitive = true
	assert.True(t, r.InPicklist("Red"))
}

func TestImportFields(t *testing.T) {
	svc, m := newTestService()
	p := seedProduct(t, svc)

	rows := [][]string{
		{"sku", "varchar", "20", "FALSE", "TRUE", "TRUE"},
		{"price", "decimal", "12", "TRUE", "", "", "", "", "1", "0", "1000", "", "", "yes", "2"},
		{"bad name", "int"},
		{},
		{"qty", "int", "abc"},
	}
	res, err := svc.ImportFields(context.Background(), p.ID, rows)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Created)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "Row 4: ")
	assert.Equal(t, `Row 6: invalid length value "abc"`, res.Errors[1])

	fields, err := svc.Fields(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "sku", fields[0].Name)
	assert.Equal(t, "price", fields[1].Name)
	assert.Len(t, m.rules, 2)
}

func TestRecordUpload(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	err := svc.RecordUpload(ctx, &UploadedFile{CatalogID: 3})
	require.Error(t, err)

	require.NoError(t, svc.RecordUpload(ctx, &UploadedFile{CatalogID: 3, FileName: "fields.xlsx"}))
	require.NoError(t, svc.RecordUpload(ctx, &UploadedFile{CatalogID: 4, FileName: "other.xlsx"}))

	files, err := svc.Uploads(ctx, 3)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "fields.xlsx", files[0].FileName)
}

func TestProductHooks(t *testing.T) {
	svc, m := newTestService()
	p := seedProduct(t, svc)
	ctx := context.Background()

	var updated []int64
	svc.ProductHooks().On(domain.AfterUpdate, func(_ context.Context, p *Product) error {
		updated = append(updated, p.ID)
		return nil
	})
	svc.ProductHooks().On(domain.BeforeDelete, func(context.Context, *Product) error {
		return apperror.NewConflict("in use")
	})

	p.Description = "renamed"
	require.NoError(t, svc.UpdateProduct(ctx, p))
	assert.Equal(t, []int64{p.ID}, updated)

	err := svc.DeleteProduct(ctx, p.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))
	assert.Contains(t, m.products, p.ID)
}
