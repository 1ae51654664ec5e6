// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/ManuGH/qod/internal/domain/qos/ports"
	"github.com/dgraph-io/badger/v4"
)

const (
	badgerSessionPrefix      = "sess:"
	badgerSubscriptionPrefix = "sub:"
)

// BadgerStore is an embedded key-value SessionStore:
// - sessions: key = "sess:<id>" (JSON)
// - subscription index: key = "sub:<subscriptionId>" (value = session id)
// Client and device lookups scan the session prefix.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens a badger database at path; an empty path runs in memory.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func sessionKey(id string) []byte { return []byte(badgerSessionPrefix + id) }
func subKey(id string) []byte     { return []byte(badgerSubscriptionPrefix + id) }

func getSession(txn *badger.Txn, id string) (*model.QosSession, error) {
	item, err := txn.Get(sessionKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec model.QosSession
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, err
	}
	return &rec, nil
}

func putSession(txn *badger.Txn, prev, rec *model.QosSession) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if prev != nil && prev.SubscriptionID != "" && prev.SubscriptionID != rec.SubscriptionID {
		if err := txn.Delete(subKey(prev.SubscriptionID)); err != nil {
			return err
		}
	}
	if rec.SubscriptionID != "" {
		if err := txn.Set(subKey(rec.SubscriptionID), []byte(rec.SessionID)); err != nil {
			return err
		}
	}
	return txn.Set(sessionKey(rec.SessionID), buf)
}

func (s *BadgerStore) Save(ctx context.Context, rec *model.QosSession) error {
	return s.db.Update(func(txn *badger.Txn) error {
		prev, err := getSession(txn, rec.SessionID)
		if err != nil {
			return err
		}
		return putSession(txn, prev, rec)
	})
}

func (s *BadgerStore) FindByID(ctx context.Context, id string) (*model.QosSession, error) {
	var out *model.QosSession
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = getSession(txn, id)
		return err
	})
	return out, err
}

func (s *BadgerStore) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*model.QosSession, error) {
	if subscriptionID == "" {
		return nil, nil
	}
	var out *model.QosSession
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(subKey(subscriptionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		out, err = getSession(txn, string(id))
		return err
	})
	return out, err
}

func (s *BadgerStore) FindByClientID(ctx context.Context, clientID string) ([]*model.QosSession, error) {
	return s.scan(ctx, func(r *model.QosSession) bool { return r.ClientID == clientID })
}

func (s *BadgerStore) FindByDeviceAddress(ctx context.Context, address string) ([]*model.QosSession, error) {
	address = model.CanonicalAddress(address)
	return s.scan(ctx, func(r *model.QosSession) bool { return r.DeviceAddress() == address })
}

func (s *BadgerStore) FindAll(ctx context.Context) ([]*model.QosSession, error) {
	return s.scan(ctx, func(*model.QosSession) bool { return true })
}

func (s *BadgerStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	removed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		prev, err := getSession(txn, id)
		if err != nil || prev == nil {
			return err
		}
		if prev.SubscriptionID != "" {
			if err := txn.Delete(subKey(prev.SubscriptionID)); err != nil {
				return err
			}
		}
		if err := txn.Delete(sessionKey(id)); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// maxUpdateAttempts bounds retries of optimistic transactions that lost a
// write conflict.
const maxUpdateAttempts = 5

func (s *BadgerStore) Update(ctx context.Context, id string, fn func(*model.QosSession) error) (*model.QosSession, error) {
	var out *model.QosSession
	var err error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		err = s.db.Update(func(txn *badger.Txn) error {
			prev, err := getSession(txn, id)
			if err != nil {
				return err
			}
			if prev == nil {
				return ports.ErrSessionNotFound
			}
			next := prev.Clone()
			if err := fn(next); err != nil {
				return err
			}
			if err := putSession(txn, prev, next); err != nil {
				return err
			}
			out = next
			return nil
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) scan(ctx context.Context, match func(*model.QosSession) bool) ([]*model.QosSession, error) {
	var out []*model.QosSession
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerSessionPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec model.QosSession
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if match(&rec) {
				cp := rec
				out = append(out, &cp)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

var _ ports.SessionStore = (*BadgerStore)(nil)
