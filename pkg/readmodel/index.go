package readmodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/gracevcs/grace-server/pkg/domain"
	"github.com/gracevcs/grace-server/pkg/events"
	"github.com/gracevcs/grace-server/pkg/log"
	"github.com/gracevcs/grace-server/pkg/types"
)

var (
	bucketReferences     = []byte("rm_references")
	bucketRefsByBranch   = []byte("rm_refs_by_branch")
	bucketBranches       = []byte("rm_branches")
	bucketBranchesByRepo = []byte("rm_branches_by_repo")
)

// ReferenceRow is the denormalized projection of one reference.
type ReferenceRow struct {
	ReferenceID        uuid.UUID           `json:"referenceId"`
	RepositoryID       uuid.UUID           `json:"repositoryId"`
	BranchID           uuid.UUID           `json:"branchId"`
	DirectoryVersionID uuid.UUID           `json:"directoryVersionId"`
	Sha256Hash         string              `json:"sha256Hash"`
	ReferenceType      types.ReferenceType `json:"referenceType"`
	Text               string              `json:"text"`
	CreatedAt          time.Time           `json:"createdAt"`
	DeletedAt          *time.Time          `json:"deletedAt,omitempty"`
}

// BranchRow is the denormalized projection of one branch.
type BranchRow struct {
	BranchID     uuid.UUID `json:"branchId"`
	RepositoryID uuid.UUID `json:"repositoryId"`
	Name         string    `json:"name"`
}

// Index folds branch and reference events from the event bus into bolt
// buckets that serve the branch actor's Activate pointer repair, the
// cascade enumerations of the deletion scheduler, and reference
// queries. The stream is advisory: the index trails the event log and
// is never consulted for command acceptance.
type Index struct {
	db     *bolt.DB
	broker *events.Broker
	sub    events.Subscriber
	stopCh chan struct{}
	done   sync.WaitGroup
	once   sync.Once
}

// NewIndex creates the projection buckets on a shared bolt handle.
func NewIndex(db *bolt.DB, broker *events.Broker) (*Index, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketReferences, bucketRefsByBranch, bucketBranches, bucketBranchesByRepo} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Index{
		db:     db,
		broker: broker,
		stopCh: make(chan struct{}),
	}, nil
}

// Start subscribes to the branch and reference topics and begins
// folding.
func (i *Index) Start() {
	i.sub = i.broker.Subscribe(events.TopicBranches, events.TopicReferences)
	i.done.Add(1)
	go i.run()
}

// Stop unsubscribes and waits for the fold loop to drain.
func (i *Index) Stop() {
	i.once.Do(func() {
		close(i.stopCh)
		i.broker.Unsubscribe(i.sub)
	})
	i.done.Wait()
}

func (i *Index) run() {
	defer i.done.Done()
	logger := log.WithComponent("readmodel")

	for {
		select {
		case envelope, ok := <-i.sub:
			if !ok {
				return
			}
			if err := i.Apply(envelope); err != nil {
				logger.Error().Err(err).Str("tag", string(envelope.Tag)).Msg("projection fold failed")
			}
		case <-i.stopCh:
			// Drain whatever was already queued before unsubscribe.
			for {
				select {
				case envelope, ok := <-i.sub:
					if !ok {
						return
					}
					if err := i.Apply(envelope); err != nil {
						logger.Error().Err(err).Msg("projection fold failed")
					}
				default:
					return
				}
			}
		}
	}
}

// Apply folds one envelope into the projection. Duplicate delivery is
// harmless: every fold is an upsert or an idempotent delete.
func (i *Index) Apply(envelope *events.Envelope) error {
	switch envelope.Tag {
	case events.TagReferenceEvent:
		event, err := domain.UnmarshalReferenceEventWire(envelope.Event)
		if err != nil {
			return err
		}
		return i.applyReference(event, envelope.Metadata)
	case events.TagBranchEvent:
		event, err := domain.UnmarshalBranchEventWire(envelope.Event)
		if err != nil {
			return err
		}
		return i.applyBranch(event, envelope.Metadata)
	default:
		return nil
	}
}

func refByBranchKey(branchID uuid.UUID, createdAt time.Time, refID uuid.UUID) []byte {
	// Nanosecond ordering keeps the per-branch listing chronological.
	return []byte(fmt.Sprintf("%s|%020d|%s", branchID, createdAt.UnixNano(), refID))
}

func (i *Index) applyReference(event domain.ReferenceEvent, md types.EventMetadata) error {
	switch ev := event.(type) {
	case *domain.ReferenceCreated:
		row := ReferenceRow{
			ReferenceID:        ev.ReferenceID,
			RepositoryID:       ev.RepositoryID,
			BranchID:           ev.BranchID,
			DirectoryVersionID: ev.DirectoryVersionID,
			Sha256Hash:         ev.Sha256Hash,
			ReferenceType:      ev.ReferenceType,
			Text:               ev.Text,
			CreatedAt:          ev.CreatedAt,
		}
		return i.putReference(row)
	case *domain.ReferenceLogicalDeleted:
		refID, err := uuid.Parse(md.Properties[types.PropReferenceID])
		if err != nil {
			return fmt.Errorf("reference event without referenceId property: %w", err)
		}
		return i.updateReference(refID, func(row *ReferenceRow) {
			deletedAt := ev.DeletedAt
			row.DeletedAt = &deletedAt
		})
	case *domain.ReferenceUndeleted:
		refID, err := uuid.Parse(md.Properties[types.PropReferenceID])
		if err != nil {
			return fmt.Errorf("reference event without referenceId property: %w", err)
		}
		return i.updateReference(refID, func(row *ReferenceRow) {
			row.DeletedAt = nil
		})
	case *domain.ReferencePhysicalDeleted:
		refID, err := uuid.Parse(md.Properties[types.PropReferenceID])
		if err != nil {
			return fmt.Errorf("reference event without referenceId property: %w", err)
		}
		return i.deleteReference(refID)
	}
	return nil
}

func (i *Index) applyBranch(event domain.BranchEvent, md types.EventMetadata) error {
	switch ev := event.(type) {
	case *domain.BranchCreated:
		row := BranchRow{BranchID: ev.BranchID, RepositoryID: ev.RepositoryID, Name: ev.Name}
		return i.putBranch(row)
	case *domain.BranchNameSet:
		branchID, err := uuid.Parse(md.Properties[types.PropBranchID])
		if err != nil {
			return fmt.Errorf("branch event without branchId property: %w", err)
		}
		return i.updateBranch(branchID, func(row *BranchRow) {
			row.Name = ev.Name
		})
	case *domain.BranchPhysicalDeleted:
		branchID, err := uuid.Parse(md.Properties[types.PropBranchID])
		if err != nil {
			return fmt.Errorf("branch event without branchId property: %w", err)
		}
		return i.deleteBranch(branchID)
	}
	return nil
}

func (i *Index) putReference(row ReferenceRow) error {
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return i.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketReferences).Put([]byte(row.ReferenceID.String()), data); err != nil {
			return err
		}
		return tx.Bucket(bucketRefsByBranch).Put(refByBranchKey(row.BranchID, row.CreatedAt, row.ReferenceID), data)
	})
}

func (i *Index) updateReference(refID uuid.UUID, mutate func(*ReferenceRow)) error {
	return i.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReferences)
		data := b.Get([]byte(refID.String()))
		if data == nil {
			return nil
		}
		var row ReferenceRow
		if err := json.Unmarshal(data, &row); err != nil {
			return err
		}
		mutate(&row)
		updated, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(refID.String()), updated); err != nil {
			return err
		}
		return tx.Bucket(bucketRefsByBranch).Put(refByBranchKey(row.BranchID, row.CreatedAt, row.ReferenceID), updated)
	})
}

func (i *Index) deleteReference(refID uuid.UUID) error {
	return i.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReferences)
		data := b.Get([]byte(refID.String()))
		if data == nil {
			return nil
		}
		var row ReferenceRow
		if err := json.Unmarshal(data, &row); err != nil {
			return err
		}
		if err := b.Delete([]byte(refID.String())); err != nil {
			return err
		}
		return tx.Bucket(bucketRefsByBranch).Delete(refByBranchKey(row.BranchID, row.CreatedAt, row.ReferenceID))
	})
}

func (i *Index) putBranch(row BranchRow) error {
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return i.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketBranches).Put([]byte(row.BranchID.String()), data); err != nil {
			return err
		}
		return tx.Bucket(bucketBranchesByRepo).Put([]byte(row.RepositoryID.String()+"|"+row.BranchID.String()), data)
	})
}

func (i *Index) updateBranch(branchID uuid.UUID, mutate func(*BranchRow)) error {
	return i.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBranches)
		data := b.Get([]byte(branchID.String()))
		if data == nil {
			return nil
		}
		var row BranchRow
		if err := json.Unmarshal(data, &row); err != nil {
			return err
		}
		mutate(&row)
		updated, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(branchID.String()), updated); err != nil {
			return err
		}
		return tx.Bucket(bucketBranchesByRepo).Put([]byte(row.RepositoryID.String()+"|"+row.BranchID.String()), updated)
	})
}

func (i *Index) deleteBranch(branchID uuid.UUID) error {
	return i.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBranches)
		data := b.Get([]byte(branchID.String()))
		if data == nil {
			return nil
		}
		var row BranchRow
		if err := json.Unmarshal(data, &row); err != nil {
			return err
		}
		if err := b.Delete([]byte(branchID.String())); err != nil {
			return err
		}
		return tx.Bucket(bucketBranchesByRepo).Delete([]byte(row.RepositoryID.String() + "|" + row.BranchID.String()))
	})
}

// LatestReferences returns the newest non-deleted reference per
// reference type for a branch.
func (i *Index) LatestReferences(branchID uuid.UUID) (map[types.ReferenceType]ReferenceRow, error) {
	latest := make(map[types.ReferenceType]ReferenceRow)
	err := i.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRefsByBranch).Cursor()
		prefix := []byte(branchID.String() + "|")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var row ReferenceRow
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			if row.DeletedAt != nil {
				continue
			}
			// Keys are chronological, so the last one per type wins.
			latest[row.ReferenceType] = row
		}
		return nil
	})
	return latest, err
}

// ListReferences returns up to maxCount references on a branch, newest
// first.
func (i *Index) ListReferences(branchID uuid.UUID, maxCount int) ([]ReferenceRow, error) {
	var rows []ReferenceRow
	err := i.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRefsByBranch).Cursor()
		prefix := []byte(branchID.String() + "|")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var row ReferenceRow
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Newest first.
	for left, right := 0, len(rows)-1; left < right; left, right = left+1, right-1 {
		rows[left], rows[right] = rows[right], rows[left]
	}
	if maxCount > 0 && len(rows) > maxCount {
		rows = rows[:maxCount]
	}
	return rows, nil
}

// ListReferencesByType returns up to maxCount references of one type on
// a branch, newest first.
func (i *Index) ListReferencesByType(branchID uuid.UUID, refType types.ReferenceType, maxCount int) ([]ReferenceRow, error) {
	all, err := i.ListReferences(branchID, 0)
	if err != nil {
		return nil, err
	}
	var rows []ReferenceRow
	for _, row := range all {
		if row.ReferenceType != refType {
			continue
		}
		rows = append(rows, row)
		if maxCount > 0 && len(rows) == maxCount {
			break
		}
	}
	return rows, nil
}

// GetReference returns the projection row for one reference id.
func (i *Index) GetReference(refID uuid.UUID) (*ReferenceRow, error) {
	var row *ReferenceRow
	err := i.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketReferences).Get([]byte(refID.String()))
		if data == nil {
			return nil
		}
		var r ReferenceRow
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		row = &r
		return nil
	})
	return row, err
}

// ListBranches returns every branch projected for a repository.
func (i *Index) ListBranches(repositoryID uuid.UUID) ([]BranchRow, error) {
	var rows []BranchRow
	err := i.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketBranchesByRepo).Cursor()
		prefix := []byte(repositoryID.String() + "|")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var row BranchRow
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return nil
	})
	return rows, err
}
