package store

import (
	"encoding/json"

	"github.com/ringmesh/chordring/internal/log"
	"github.com/ringmesh/chordring/internal/storage"
	"github.com/ringmesh/chordring/ring"
)

// Persist is the optional durable backing for a Store's primary and backup
// maps. Spec §6 requires no on-disk layout ("Persisted state: None
// required by the core"), so this is purely an enrichment behind the same
// storage.DB interface internal/storage defines: nil means pure in-memory
// (the spec-mandated default), non-nil means every mutation is mirrored to
// disk and reloaded on startup, surviving a process restart.
type Persist struct {
	primary *storage.PrefixDB
	backup  *storage.PrefixDB
}

// NewPersist wraps db with the "primary:" and "backup:" namespaces a Store
// needs. db is typically a *storage.BadgerDB opened at cfg.StoreDir().
func NewPersist(db storage.DB) *Persist {
	return &Persist{
		primary: storage.NewPrefixDB(db, []byte("primary:")),
		backup:  storage.NewPrefixDB(db, []byte("backup:")),
	}
}

// record is the on-disk encoding of a Record; JSON keeps it human
// inspectable, matching the rest of the module's wire encodings.
type record struct {
	Filename string  `json:"filename"`
	Bytes    []byte  `json:"bytes"`
	Key      ring.Id `json:"key"`
}

func encodeRecord(r Record) ([]byte, error) {
	return json.Marshal(record{Filename: r.Filename, Bytes: r.Bytes, Key: r.Key})
}

func decodeRecord(data []byte) (Record, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, err
	}
	return Record{Filename: r.Filename, Bytes: r.Bytes, Key: r.Key}, nil
}

// loadAll reconstructs every record persisted in db, keyed by filename.
func loadAll(db *storage.PrefixDB) map[string]Record {
	out := make(map[string]Record)
	_ = db.ForEach(nil, func(_ []byte, value []byte) error {
		r, err := decodeRecord(value)
		if err != nil {
			log.Store.Warn().Err(err).Msg("persist: dropping corrupt record on load")
			return nil
		}
		out[r.Filename] = r
		return nil
	})
	return out
}

func (p *Persist) putPrimary(r Record) {
	if p == nil {
		return
	}
	data, err := encodeRecord(r)
	if err != nil {
		log.Store.Warn().Err(err).Str("filename", r.Filename).Msg("persist: encode primary failed")
		return
	}
	if err := p.primary.Put([]byte(r.Filename), data); err != nil {
		log.Store.Warn().Err(err).Str("filename", r.Filename).Msg("persist: write primary failed")
	}
}

func (p *Persist) putBackup(r Record) {
	if p == nil {
		return
	}
	data, err := encodeRecord(r)
	if err != nil {
		log.Store.Warn().Err(err).Str("filename", r.Filename).Msg("persist: encode backup failed")
		return
	}
	if err := p.backup.Put([]byte(r.Filename), data); err != nil {
		log.Store.Warn().Err(err).Str("filename", r.Filename).Msg("persist: write backup failed")
	}
}

func (p *Persist) deletePrimary(filename string) {
	if p == nil {
		return
	}
	if err := p.primary.Delete([]byte(filename)); err != nil {
		log.Store.Debug().Err(err).Str("filename", filename).Msg("persist: delete primary failed")
	}
}

func (p *Persist) deleteBackup(filename string) {
	if p == nil {
		return
	}
	if err := p.backup.Delete([]byte(filename)); err != nil {
		log.Store.Debug().Err(err).Str("filename", filename).Msg("persist: delete backup failed")
	}
}

// replaceBackup swaps the entire backup set for records in one atomic
// commit: a stabilize-driven re-replication that lands between two failed
// reads must never see a backup set that is neither the old one nor the
// new one, so the clear and the writes go through a single Batch rather
// than sequential Put/Delete calls.
func (p *Persist) replaceBackup(records []Record) {
	if p == nil {
		return
	}
	var oldKeys [][]byte
	if err := p.backup.ForEach(nil, func(key, _ []byte) error {
		k := make([]byte, len(key))
		copy(k, key)
		oldKeys = append(oldKeys, k)
		return nil
	}); err != nil {
		log.Store.Warn().Err(err).Msg("persist: scan backup failed")
	}

	batch := p.backup.NewBatch()
	for _, k := range oldKeys {
		if err := batch.Delete(k); err != nil {
			log.Store.Warn().Err(err).Msg("persist: batch delete backup failed")
		}
	}
	for _, r := range records {
		data, err := encodeRecord(r)
		if err != nil {
			log.Store.Warn().Err(err).Str("filename", r.Filename).Msg("persist: encode backup failed")
			continue
		}
		if err := batch.Put([]byte(r.Filename), data); err != nil {
			log.Store.Warn().Err(err).Str("filename", r.Filename).Msg("persist: batch put backup failed")
		}
	}
	if err := batch.Commit(); err != nil {
		log.Store.Warn().Err(err).Msg("persist: commit backup replace failed")
	}
}
