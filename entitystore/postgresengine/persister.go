package postgresengine

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore"
	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/tracking"
)

// persister saves tracked changes of a Database's entity sets:
// INSERT … RETURNING * for added entities, UPDATE of the changed columns for modified ones, and DELETE.
type persister struct {
	database *Database
}

func (p persister) Insert(ctx context.Context, entity *tracking.Entity) (map[string]any, error) {
	d := p.database

	statement := d.dialect().
		Insert(d.tableIdentifier(entity.Type())).
		Rows(goqu.Record(entity.Values())).
		Returning(goqu.Star())

	sqlQuery, err := d.toSQL(ctx, entity.Type(), statement)
	if err != nil {
		return nil, err
	}

	rows, err := d.queryRows(ctx, sqlQuery, logActionInsert)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, nil
	}

	return rows[0], nil
}

func (p persister) Update(ctx context.Context, entity *tracking.Entity, changed map[string]any) error {
	if len(changed) == 0 {
		return nil
	}

	d := p.database

	key, err := p.keyExpression(entity)
	if err != nil {
		return err
	}

	statement := d.dialect().
		Update(d.tableIdentifier(entity.Type())).
		Set(goqu.Record(changed)).
		Where(key)

	return p.execute(ctx, entity, statement, logActionUpdate)
}

func (p persister) Delete(ctx context.Context, entity *tracking.Entity) error {
	d := p.database

	key, err := p.keyExpression(entity)
	if err != nil {
		return err
	}

	statement := d.dialect().
		Delete(d.tableIdentifier(entity.Type())).
		Where(key)

	return p.execute(ctx, entity, statement, logActionDelete)
}

func (p persister) execute(
	ctx context.Context,
	entity *tracking.Entity,
	statement interface{ ToSQL() (string, []any, error) },
	action string,
) error {

	sqlQuery, err := p.database.toSQL(ctx, entity.Type(), statement)
	if err != nil {
		return err
	}

	rowsAffected, err := p.database.execute(ctx, sqlQuery, action)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", entitystore.ErrEntityNotFound, entity.Type())
	}

	return nil
}

// keyExpression matches the row of the entity by its key columns.
func (p persister) keyExpression(entity *tracking.Entity) (goqu.Ex, error) {
	elementType, err := p.database.elementType(entity.Type())
	if err != nil {
		return nil, err
	}

	if len(elementType.KeyProperties) == 0 {
		return nil, entitystore.ErrKeyRequired
	}

	key := make(goqu.Ex, len(elementType.KeyProperties))
	for _, name := range elementType.KeyProperties {
		value, _ := entity.Get(name)
		key[name] = value
	}

	return key, nil
}

var _ tracking.Persister = persister{}
