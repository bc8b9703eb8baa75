package odataengine

import (
	"context"
	"net/http"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore"
	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/tracking"
)

// persister saves tracked changes of a Service's entity sets:
// POST for added entities, MERGE (v2) or PATCH (v4) for modified ones, and DELETE.
type persister struct {
	service *Service
}

func (p persister) Insert(ctx context.Context, entity *tracking.Entity) (map[string]any, error) {
	payload, err := encodeEntry(entity.Values())
	if err != nil {
		return nil, err
	}

	body, err := p.service.do(ctx, http.MethodPost, p.service.resourceURL(entity.Type(), "", ""), payload)
	if err != nil {
		return nil, err
	}

	return decodeEntry(body)
}

func (p persister) Update(ctx context.Context, entity *tracking.Entity, changed map[string]any) error {
	if len(changed) == 0 {
		return nil
	}

	target, err := p.entityURL(entity)
	if err != nil {
		return err
	}

	payload, err := encodeEntry(changed)
	if err != nil {
		return err
	}

	method := methodMerge
	if p.service.version == V4 {
		method = http.MethodPatch
	}

	_, err = p.service.do(ctx, method, target, payload)

	return err
}

func (p persister) Delete(ctx context.Context, entity *tracking.Entity) error {
	target, err := p.entityURL(entity)
	if err != nil {
		return err
	}

	_, err = p.service.do(ctx, http.MethodDelete, target, nil)

	return err
}

func (p persister) entityURL(entity *tracking.Entity) (string, error) {
	elementType, err := p.service.elementType(entity.Type())
	if err != nil {
		return "", err
	}

	if len(elementType.KeyProperties) == 0 {
		return "", entitystore.ErrKeyRequired
	}

	return p.service.resourceURL(entity.Type(), renderKey(elementType.KeyProperties, entity.Values()), ""), nil
}

var _ tracking.Persister = persister{}
