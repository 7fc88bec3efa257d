package homologation_repo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"

	"sage/internal/domain/homologation"
	"sage/internal/infrastructure/storage/postgres"
)

const configTable = "homologation_config"

// ConfigRepo implements homologation.ConfigRepository on a single row keyed
// by homologation.ConfigKey.
type ConfigRepo struct {
	*postgres.Table[homologation.Config]
}

var _ homologation.ConfigRepository = (*ConfigRepo)(nil)

func NewConfigRepo(db postgres.QuerierSource) *ConfigRepo {
	return &ConfigRepo{postgres.NewTable[homologation.Config](db, configTable, "homologation configuration")}
}

func (r *ConfigRepo) Get(ctx context.Context) (*homologation.Config, error) {
	return r.Table.Get(ctx, r.Select().Where(squirrel.Eq{configTable + ".singleton_key": homologation.ConfigKey}), homologation.ConfigKey)
}

// Save inserts the row or overwrites every column of the existing one.
func (r *ConfigRepo) Save(ctx context.Context, c *homologation.Config) error {
	c.Key = homologation.ConfigKey
	c.UpdatedAt = time.Now().UTC()
	sql, args, err := upsertConfig(c)
	if err != nil {
		return err
	}
	if _, err := r.Q(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError("save homologation configuration", "homologation configuration", c.Key, err)
	}
	return nil
}

func upsertConfig(c *homologation.Config) (string, []any, error) {
	data := postgres.StructToMap(c)
	cols := make([]string, 0, len(data))
	for col := range data {
		if col != "singleton_key" {
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)

	set := make([]string, len(cols))
	for i, col := range cols {
		set[i] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
	}
	return postgres.Builder().Insert(configTable).SetMap(data).
		Suffix("ON CONFLICT (singleton_key) DO UPDATE SET " + strings.Join(set, ", ")).
		ToSql()
}
