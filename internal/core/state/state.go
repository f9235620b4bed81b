// Package state manages Gantry's persistent state using BoltDB.
// All writes are transactional; reads use read-only transactions to minimise contention.
package state

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	v1 "github.com/gantry-build/gantry/api/v1"
)

// Bucket names
var (
	bucketBuilds   = []byte("builds")
	bucketPackages = []byte("packages")
	bucketAgents   = []byte("agents")
)

// DB wraps a BoltDB instance with typed accessor methods.
type DB struct {
	bolt *bbolt.DB
}

// Open opens (or creates) the state database at the given path.
func Open(path string) (*DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state db %q: %w", path, err)
	}

	// Ensure all buckets exist
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketBuilds, bucketPackages, bucketAgents} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %q: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &DB{bolt: db}, nil
}

// Close closes the underlying BoltDB file.
func (db *DB) Close() error {
	return db.bolt.Close()
}

// ─────────────────────────────────────────────────────────────────────────────
// Build history
// ─────────────────────────────────────────────────────────────────────────────

// AppendBuild appends a build record to the history and returns its ID.
// Keys are zero-padded sequence numbers so cursor order is insert order.
func (db *DB) AppendBuild(rec v1.BuildRecord) (string, error) {
	var id string
	err := db.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketBuilds)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = fmt.Sprintf("%08d", seq)
		rec.ID = id
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal build record: %w", err)
		}
		return b.Put([]byte(id), data)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListBuilds returns build records newest-first, optionally filtered by
// project file name. limit <= 0 returns everything.
func (db *DB) ListBuilds(project string, limit int) ([]v1.BuildRecord, error) {
	var recs []v1.BuildRecord
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketBuilds).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var r v1.BuildRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshal build %q: %w", k, err)
			}
			if project != "" && r.ProjectFile != project {
				continue
			}
			recs = append(recs, r)
			if limit > 0 && len(recs) >= limit {
				return nil
			}
		}
		return nil
	})
	return recs, err
}

// LastBuild returns the most recent build record, or nil when the history
// is empty.
func (db *DB) LastBuild() (*v1.BuildRecord, error) {
	recs, err := db.ListBuilds("", 1)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Package history
// ─────────────────────────────────────────────────────────────────────────────

// AppendPackage appends a package record to the history and returns its ID.
func (db *DB) AppendPackage(rec v1.PackageRecord) (string, error) {
	var id string
	err := db.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPackages)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = fmt.Sprintf("%08d", seq)
		rec.ID = id
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal package record: %w", err)
		}
		return b.Put([]byte(id), data)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListPackages returns package records newest-first. limit <= 0 returns everything.
func (db *DB) ListPackages(limit int) ([]v1.PackageRecord, error) {
	var recs []v1.PackageRecord
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketPackages).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var r v1.PackageRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshal package %q: %w", k, err)
			}
			recs = append(recs, r)
			if limit > 0 && len(recs) >= limit {
				return nil
			}
		}
		return nil
	})
	return recs, err
}

// ─────────────────────────────────────────────────────────────────────────────
// Agent registry
// ─────────────────────────────────────────────────────────────────────────────

// PutAgent upserts an AgentInfo record.
func (db *DB) PutAgent(info v1.AgentInfo) error {
	return db.putJSON(bucketAgents, info.Spec.Name, info)
}

// GetAgent retrieves an AgentInfo by name. Returns nil, nil if not found.
func (db *DB) GetAgent(name string) (*v1.AgentInfo, error) {
	var info v1.AgentInfo
	found, err := db.getJSON(bucketAgents, name, &info)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &info, nil
}

// DeleteAgent removes an agent record.
func (db *DB) DeleteAgent(name string) error {
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAgents).Delete([]byte(name))
	})
}

// ListAgents returns all registered agents.
func (db *DB) ListAgents() ([]v1.AgentInfo, error) {
	var agents []v1.AgentInfo
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAgents).ForEach(func(k, v []byte) error {
			var info v1.AgentInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return fmt.Errorf("unmarshal agent %q: %w", k, err)
			}
			agents = append(agents, info)
			return nil
		})
	})
	return agents, err
}

// UpdateAgentStatus updates only the status, last_seen, and fail_count fields.
func (db *DB) UpdateAgentStatus(name string, status v1.AgentStatus, failCount int) error {
	info, err := db.GetAgent(name)
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("agent %q not found", name)
	}
	info.Status = status
	info.LastSeen = time.Now().UTC()
	info.FailCount = failCount
	return db.PutAgent(*info)
}

// ─────────────────────────────────────────────────────────────────────────────
// Generic helpers
// ─────────────────────────────────────────────────────────────────────────────

func (db *DB) putJSON(bucket []byte, key string, val any) error {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (db *DB) getJSON(bucket []byte, key string, out any) (bool, error) {
	var found bool
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, out)
	})
	return found, err
}
