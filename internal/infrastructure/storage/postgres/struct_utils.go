package postgres

import (
	"reflect"
	"sync"
)

// ExtractDBColumns lists the "db" tags of T in declaration order, descending
// into embedded structs. Fields tagged "-" are skipped.
//
//	cols := ExtractDBColumns[catalog.Catalog]()
//	// ["id", "name", "tags", ...]
func ExtractDBColumns[T any]() []string {
	var zero T
	meta := metadataFor(reflect.TypeOf(zero))
	return meta.columns()
}

type fieldInfo struct {
	index    int
	dbTag    string
	embedded *typeMetadata
}

type typeMetadata struct {
	fields []fieldInfo
}

func (m *typeMetadata) columns() []string {
	var cols []string
	for _, fi := range m.fields {
		if fi.embedded != nil {
			cols = append(cols, fi.embedded.columns()...)
			continue
		}
		cols = append(cols, fi.dbTag)
	}
	return cols
}

var typeCache sync.Map // reflect.Type -> *typeMetadata

func metadataFor(t reflect.Type) *typeMetadata {
	if t == nil {
		return &typeMetadata{}
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	meta := &typeMetadata{}
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.Anonymous {
				meta.fields = append(meta.fields, fieldInfo{index: i, embedded: metadataFor(f.Type)})
				continue
			}
			tag := f.Tag.Get("db")
			if tag == "" || tag == "-" {
				continue
			}
			meta.fields = append(meta.fields, fieldInfo{index: i, dbTag: tag})
		}
	}

	actual, _ := typeCache.LoadOrStore(t, meta)
	return actual.(*typeMetadata)
}

// StructToMap maps a struct's "db" tags to field values. omit drops columns,
// typically the generated id and creation timestamp.
func StructToMap(v any, omit ...string) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	res := make(map[string]any)
	fill(res, rv, metadataFor(rv.Type()))
	for _, col := range omit {
		delete(res, col)
	}
	return res
}

func fill(dst map[string]any, rv reflect.Value, meta *typeMetadata) {
	for _, fi := range meta.fields {
		fv := rv.Field(fi.index)
		if fi.embedded != nil {
			if fv.Kind() == reflect.Ptr {
				if fv.IsNil() {
					continue
				}
				fv = fv.Elem()
			}
			fill(dst, fv, fi.embedded)
			continue
		}
		dst[fi.dbTag] = fv.Interface()
	}
}
