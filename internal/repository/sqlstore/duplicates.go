package sqlstore

import (
	"context"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"foldertree/internal/domain"
	"foldertree/internal/domain/models"
	"foldertree/internal/domain/repositories"
	"foldertree/internal/utils"
)

// DuplicateRepository implements the DuplicateResolver interface
type DuplicateRepository struct {
	base
	deleter *DeleteRepository
	locale  language.Tag
}

// NewDuplicateRepository creates a resolver whose survivor ordering uses locale
func NewDuplicateRepository(config *RepositoryConfig, locale language.Tag) *DuplicateRepository {
	return &DuplicateRepository{
		base:    newBase(config),
		deleter: NewDeleteRepository(config),
		locale:  locale,
	}
}

var _ repositories.DuplicateResolver = (*DuplicateRepository)(nil)

type nameGroup struct {
	parentID, name string
}

// ResolveDuplicates removes same-parent same-name collisions in one transaction
func (r *DuplicateRepository) ResolveDuplicates(ctx context.Context, scope models.ScopeKey) (map[string][]string, error) {
	var removed map[string][]string
	err := r.write(ctx, scope, func(ctx context.Context, tx repositories.DBTX) error {
		var err error
		removed, err = r.ResolveDuplicatesTx(ctx, tx, scope)
		return err
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// ResolveDuplicatesTx keeps the naturally lowest folder id of every collision
// group and deletes the others. The result maps a folder name to the removed ids.
func (r *DuplicateRepository) ResolveDuplicatesTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey) (map[string][]string, error) {
	groups, err := r.collisionsTx(ctx, tx, scope)
	if err != nil {
		return nil, err
	}

	removed := make(map[string][]string)
	if len(groups) == 0 {
		return removed, nil
	}

	collator := collate.New(r.locale)
	for _, g := range groups {
		ids, err := r.memberIDsTx(ctx, tx, scope, g)
		if err != nil {
			return nil, err
		}
		if len(ids) < 2 {
			continue
		}
		sort.SliceStable(ids, func(i, j int) bool {
			return utils.CompareNatural(ids[i], ids[j], collator) < 0
		})

		for _, id := range ids[1:] {
			outcome, err := r.deleter.DeleteTx(ctx, tx, scope, id, models.DeleteOptions{})
			if err != nil {
				return nil, err
			}
			if outcome.Deleted() {
				removed[g.name] = append(removed[g.name], id)
			}
		}

		r.logger.Info("duplicate folders removed",
			scopeOf(scope),
			"parent_id", g.parentID,
			"name", g.name,
			"kept", ids[0],
			"removed", len(ids)-1,
		)
	}
	return removed, nil
}

func (r *DuplicateRepository) collisionsTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey) ([]nameGroup, error) {
	where, args := scopeWhere(scope, false)
	query := r.q(`
		SELECT parent_id, name
		FROM %s
		WHERE `+where+`
		GROUP BY parent_id, name
		HAVING COUNT(*) > 1
		ORDER BY parent_id, name
	`, r.tables.family(scope.Storage).tree)

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.Storage("find duplicate folders", err)
	}
	defer rows.Close()

	var groups []nameGroup
	for rows.Next() {
		var g nameGroup
		if err := rows.Scan(&g.parentID, &g.name); err != nil {
			return nil, domain.Storage("scan duplicate folders", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage("iterate duplicate folders", err)
	}
	return groups, nil
}

func (r *DuplicateRepository) memberIDsTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, g nameGroup) ([]string, error) {
	where, args := scopeWhere(scope, false)
	query := r.q(`
		SELECT folder_id FROM %s
		WHERE `+where+` AND parent_id = ? AND name = ?
	`, r.tables.family(scope.Storage).tree)

	rows, err := tx.QueryContext(ctx, query, appendArgs(args, g.parentID, g.name)...)
	if err != nil {
		return nil, domain.Storage("list duplicate folders", err)
	}
	ids, err := collectStrings(rows)
	if err != nil {
		return nil, domain.Storage("iterate duplicate folders", err)
	}
	return ids, nil
}
