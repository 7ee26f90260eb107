package memory

import "sort"

// overlay хранит незакоммиченные записи одной таблицы.
type overlay[T any] struct {
	writes  map[string]T
	deleted map[string]struct{}
}

func newOverlay[T any]() overlay[T] {
	return overlay[T]{
		writes:  make(map[string]T),
		deleted: make(map[string]struct{}),
	}
}

// get читает запись с учётом overlay. committed читается под RLock вызывающего.
func (o *overlay[T]) get(id string, committed map[string]T) (T, bool) {
	var zero T
	if _, gone := o.deleted[id]; gone {
		return zero, false
	}
	if v, ok := o.writes[id]; ok {
		return v, true
	}
	v, ok := committed[id]
	return v, ok
}

func (o *overlay[T]) put(id string, v T) {
	delete(o.deleted, id)
	o.writes[id] = v
}

func (o *overlay[T]) remove(id string) {
	delete(o.writes, id)
	o.deleted[id] = struct{}{}
}

// merged возвращает записи, подходящие под фильтр, в детерминированном порядке ключей.
func (o *overlay[T]) merged(committed map[string]T, keep func(T) bool) []T {
	ids := make([]string, 0)
	seen := make(map[string]struct{})
	for id, v := range committed {
		if keep(v) {
			ids = append(ids, id)
			seen[id] = struct{}{}
		}
	}
	for id, v := range o.writes {
		if _, ok := seen[id]; !ok && keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	result := make([]T, 0, len(ids))
	for _, id := range ids {
		if v, ok := o.get(id, committed); ok && keep(v) {
			result = append(result, v)
		}
	}
	return result
}

func (o *overlay[T]) applyTo(committed map[string]T) {
	for id := range o.deleted {
		delete(committed, id)
	}
	for id, v := range o.writes {
		committed[id] = v
	}
}
