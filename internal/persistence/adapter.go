// Package persistence loads and saves the whole note collection as one serialized
// value under a fixed storage key.
package persistence

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/starford/markit/internal/models"
	"github.com/starford/markit/internal/storage"
)

// DefaultKey is the storage namespace the collection lives under.
const DefaultKey = "markit-notes"

// TimeLayout is the canonical textual form of persisted timestamps.
const TimeLayout = time.RFC3339Nano

const quarantineMarker = ".corrupt-"

const (
	readAttempts   = 3
	readRetryDelay = 50 * time.Millisecond
)

// Snapshot is the outcome of Load. Notes is always usable, even when Recovered.
type Snapshot struct {
	Notes []models.Note
	// Recovered is set when a stored value existed but could not be used.
	Recovered bool
	// Cause describes why the stored value was rejected.
	Cause error
	// QuarantineKey names the key the rejected value was moved to, if any.
	QuarantineKey string
	// Unreadable is set when the store could not be read at all. The stored value
	// may be intact, so Notes must not be treated as the collection.
	Unreadable bool
}

// Adapter persists the collection through a storage.Provider.
type Adapter struct {
	store  storage.Provider
	key    string
	logger *slog.Logger
	now    func() time.Time

	retryDelay time.Duration
}

// New creates an Adapter storing the collection under key.
func New(store storage.Provider, key string, logger *slog.Logger) *Adapter {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{store: store, key: key, logger: logger, now: time.Now, retryDelay: readRetryDelay}
}

// Key returns the storage key in use.
func (a *Adapter) Key() string {
	return a.key
}

// Load reads the stored collection. An absent value yields an empty collection,
// and a malformed one is quarantined and yields an empty collection plus a
// diagnostic. A store that keeps failing to read yields an Unreadable snapshot:
// the value is left untouched and must not be overwritten.
func (a *Adapter) Load() Snapshot {
	data, err := a.read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			a.logger.Debug("persistence: no stored notes", slog.String("key", a.key))
			return Snapshot{Notes: []models.Note{}}
		}
		a.logger.Error("persistence: store unreadable",
			slog.String("key", a.key), slog.String("error", err.Error()))
		return Snapshot{Notes: []models.Note{}, Unreadable: true, Cause: err}
	}

	notes, err := Decode(data)
	if err == nil {
		a.logger.Info("persistence: loaded notes", slog.String("key", a.key), slog.Int("count", len(notes)))
		return Snapshot{Notes: notes}
	}

	snap := Snapshot{Notes: []models.Note{}, Recovered: true, Cause: err}
	qkey := fmt.Sprintf("%s%s%d", a.key, quarantineMarker, a.now().UnixNano())
	if mvErr := a.store.Move(a.key, qkey); mvErr != nil {
		a.logger.Error("persistence: quarantine failed",
			slog.String("key", a.key), slog.String("error", mvErr.Error()))
	} else {
		snap.QuarantineKey = qkey
	}
	a.logger.Warn("persistence: stored notes are malformed, starting empty",
		slog.String("key", a.key),
		slog.String("quarantine", snap.QuarantineKey),
		slog.String("error", err.Error()))
	return snap
}

func (a *Adapter) read() ([]byte, error) {
	var err error
	for attempt := 1; attempt <= readAttempts; attempt++ {
		var data []byte
		data, err = a.store.Read(a.key)
		if err == nil || errors.Is(err, os.ErrNotExist) {
			return data, err
		}
		if attempt < readAttempts {
			a.logger.Warn("persistence: read failed, retrying",
				slog.String("key", a.key),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			time.Sleep(a.retryDelay)
		}
	}
	return nil, err
}

// Save serializes the full collection and replaces the stored value.
func (a *Adapter) Save(notes []models.Note) error {
	data, err := Encode(notes)
	if err != nil {
		return err
	}
	if err := a.store.Write(a.key, data); err != nil {
		return fmt.Errorf("persistence: save: %w", err)
	}
	return nil
}

// Quarantined lists keys holding values that Load rejected.
func (a *Adapter) Quarantined() ([]string, error) {
	metas, err := a.store.List()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range metas {
		if strings.HasPrefix(m.Key, a.key+quarantineMarker) {
			out = append(out, m.Key)
		}
	}
	return out, nil
}
