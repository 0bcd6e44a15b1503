package timers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/gracevcs/grace-server/pkg/actorhost"
	"github.com/gracevcs/grace-server/pkg/log"
	"github.com/gracevcs/grace-server/pkg/metrics"
)

// ReminderPhysicalDeletion is the reminder name used by the deletion
// scheduler across all entity kinds.
const ReminderPhysicalDeletion = "PhysicalDeletion"

// DefaultTick is how often the service scans for due reminders.
const DefaultTick = time.Second

var bucketReminders = []byte("reminders")

// reminder is the durable row for one registered reminder.
type reminder struct {
	ActorKind string        `json:"actorKind"`
	ActorID   string        `json:"actorId"`
	Name      string        `json:"name"`
	Payload   []byte        `json:"payload"`
	Due       time.Time     `json:"due"`
	Period    time.Duration `json:"period"` // 0 = one-shot
}

// ReminderService persists named, per-actor reminders and re-enters the
// owning actor through the host when they fire. Delivery failures are
// logged and swallowed; a failed reminder is not rescheduled.
type ReminderService struct {
	db     *bolt.DB
	host   *actorhost.Host
	tick   time.Duration
	stopCh chan struct{}
	done   sync.WaitGroup
	once   sync.Once
}

// NewReminderService creates the service on a shared bolt handle.
func NewReminderService(db *bolt.DB, host *actorhost.Host, tick time.Duration) (*ReminderService, error) {
	if tick <= 0 {
		tick = DefaultTick
	}
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReminders)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create reminder bucket: %w", err)
	}
	return &ReminderService{
		db:     db,
		host:   host,
		tick:   tick,
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins the due-reminder scan loop.
func (s *ReminderService) Start() {
	s.done.Add(1)
	go s.run()
}

// Stop stops the scan loop and waits for it to exit.
func (s *ReminderService) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	s.done.Wait()
}

func reminderKey(actorKind, actorID, name string) []byte {
	return []byte(actorKind + "|" + actorID + "|" + name)
}

// Register durably schedules a reminder. Registering an existing
// (actor, name) pair replaces it. A period of zero means one-shot.
func (s *ReminderService) Register(actorKind, actorID, name string, payload []byte, due time.Time, period time.Duration) error {
	row := reminder{
		ActorKind: actorKind,
		ActorID:   actorID,
		Name:      name,
		Payload:   payload,
		Due:       due.UTC(),
		Period:    period,
	}
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReminders).Put(reminderKey(actorKind, actorID, name), data)
	})
	if err != nil {
		return fmt.Errorf("failed to register reminder: %w", err)
	}
	metrics.RemindersScheduledTotal.Inc()
	return nil
}

// Unregister removes a pending reminder; removing an absent reminder is
// not an error.
func (s *ReminderService) Unregister(actorKind, actorID, name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReminders).Delete(reminderKey(actorKind, actorID, name))
	})
}

// Pending reports whether a reminder is currently registered.
func (s *ReminderService) Pending(actorKind, actorID, name string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketReminders).Get(reminderKey(actorKind, actorID, name)) != nil
		return nil
	})
	return found, err
}

func (s *ReminderService) run() {
	defer s.done.Done()
	logger := log.WithComponent("reminders")

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.fireDue(logger)
		case <-s.stopCh:
			return
		}
	}
}

// fireDue pops every due reminder and delivers it. One-shot reminders
// are removed before dispatch; periodic reminders are re-armed.
func (s *ReminderService) fireDue(logger zerolog.Logger) {
	now := time.Now().UTC()
	var due []reminder

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReminders)

		// Mutating a bucket invalidates its cursor, so the scan only
		// collects; deletes and re-arms happen after the loop.
		var remove [][]byte
		var rearm []struct{ key, data []byte }
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var row reminder
			if err := json.Unmarshal(v, &row); err != nil {
				logger.Error().Err(err).Str("key", string(k)).Msg("dropping undecodable reminder")
				remove = append(remove, append([]byte(nil), k...))
				continue
			}
			if row.Due.After(now) {
				continue
			}
			due = append(due, row)
			if row.Period > 0 {
				row.Due = now.Add(row.Period)
				data, err := json.Marshal(row)
				if err != nil {
					return err
				}
				rearm = append(rearm, struct{ key, data []byte }{append([]byte(nil), k...), data})
			} else {
				remove = append(remove, append([]byte(nil), k...))
			}
		}
		for _, k := range remove {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		for _, r := range rearm {
			if err := b.Put(r.key, r.data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("reminder scan failed")
		return
	}

	for _, row := range due {
		row := row
		s.done.Add(1)
		go func() {
			defer s.done.Done()
			ctx := context.Background()
			if err := s.host.DeliverReminder(ctx, row.ActorKind, row.ActorID, row.Name, row.Payload, row.Due, row.Period); err != nil {
				metrics.RemindersFiredTotal.WithLabelValues("error").Inc()
				logger.Error().Err(err).
					Str("actor_kind", row.ActorKind).
					Str("actor_id", row.ActorID).
					Str("reminder", row.Name).
					Msg("reminder delivery failed")
				return
			}
			metrics.RemindersFiredTotal.WithLabelValues("ok").Inc()
		}()
	}
}
