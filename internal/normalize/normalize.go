// Package normalize coerces extracted candidates into canonical events and
// commits them to the store at most once per identity key.
package normalize

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/idgen"
	"github.com/alfredjeanlab/campusevents/internal/model"
	"github.com/alfredjeanlab/campusevents/internal/store"
)

// DefaultStoreTimeout bounds one commit.
const DefaultStoreTimeout = 10 * time.Second

// ErrStoreUnavailable marks a failed write after which the store did not
// answer a ping either.
var ErrStoreUnavailable = errors.New("store unavailable")

// Config holds the normalization rules.
type Config struct {
	Location          *time.Location // canonical zone; nil means DefaultTimezone
	Buckets           []model.LocationBucket
	Categories        []model.CategoryRule
	CategoryThreshold float64
	StoreTimeout      time.Duration
	Now               func() time.Time
}

// Reference is what the source document knows about every candidate it
// produced.
type Reference struct {
	Source      string
	Link        string
	PubDate     *time.Time
	AuthorName  string
	AuthorEmail string
}

// Outcome classifies what happened to one candidate.
type Outcome string

const (
	OutcomeStored      Outcome = "stored"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeStoreFailed Outcome = "store_failed"
)

// Result is the outcome of processing one candidate.
type Result struct {
	Outcome Outcome
	Event   *model.Event // nil when invalid
	Err     error        // nil when stored
}

// Normalizer validates candidates and commits them.
type Normalizer struct {
	store        store.Store
	loc          *time.Location
	locator      *Locator
	categorizer  *Categorizer
	storeTimeout time.Duration
	now          func() time.Time
	locks        *keyLock
	logger       *slog.Logger
}

// New returns a Normalizer writing to s. Empty Buckets and Categories use
// the built-in campus defaults.
func New(s store.Store, cfg Config, logger *slog.Logger) (*Normalizer, error) {
	loc := cfg.Location
	if loc == nil {
		var err error
		if loc, err = time.LoadLocation(DefaultTimezone); err != nil {
			return nil, fmt.Errorf("load timezone: %w", err)
		}
	}
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = model.DefaultLocationBuckets()
	}
	rules := cfg.Categories
	if len(rules) == 0 {
		rules = model.DefaultCategoryRules()
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		store:        s,
		loc:          loc,
		locator:      NewLocator(buckets),
		categorizer:  NewCategorizer(rules, cfg.CategoryThreshold),
		storeTimeout: cfg.StoreTimeout,
		now:          cfg.Now,
		locks:        newKeyLock(),
		logger:       logger,
	}, nil
}

// Location returns the canonical zone.
func (n *Normalizer) Location() *time.Location { return n.loc }

// Locator returns the location bucket resolver.
func (n *Normalizer) Locator() *Locator { return n.locator }

// Categorizer returns the keyword categorizer.
func (n *Normalizer) Categorizer() *Categorizer { return n.categorizer }

// Normalize turns a candidate into an Event without touching the store. It
// returns a *model.NormalizationError when the candidate cannot be used.
func (n *Normalizer) Normalize(c model.Candidate, ref Reference) (*model.Event, error) {
	if !c.Valid() {
		return nil, &model.NormalizationError{Field: "candidate", Message: "malformed: " + c.Reason}
	}

	title := strings.Join(strings.Fields(c.Get(model.FieldTitle)), " ")
	if title == "" {
		return nil, &model.NormalizationError{Field: model.FieldTitle, Message: "is empty"}
	}

	start, err := ParseTime(c.Get(model.FieldStartTime), ref.PubDate, n.loc, n.now)
	if err != nil {
		return nil, &model.NormalizationError{Field: model.FieldStartTime, Message: "unparseable", Err: err}
	}
	var end *time.Time
	if raw := c.Get(model.FieldEndTime); raw != "" {
		t, err := ParseTime(raw, &start, n.loc, n.now)
		if err != nil {
			return nil, &model.NormalizationError{Field: model.FieldEndTime, Message: "unparseable", Err: err}
		}
		if t.Before(start) {
			return nil, &model.NormalizationError{Field: model.FieldEndTime, Message: "before start_time"}
		}
		end = &t
	}

	location := strings.TrimSpace(c.Get(model.FieldLocation))
	key := model.IdentityKey(title, start, location)
	e := &model.Event{
		ID:               idgen.EventID(key),
		IdentityKey:      key,
		Title:            title,
		EventDescription: strings.TrimSpace(c.Get(model.FieldDescription)),
		StartTime:        start,
		EndTime:          end,
		Location:         location,
		AuthorName:       firstNonEmpty(c.Get(model.FieldAuthorName), ref.AuthorName),
		AuthorEmail:      firstNonEmpty(c.Get(model.FieldAuthorEmail), ref.AuthorEmail),
		PictureLink:      c.Get(model.FieldPictureLink),
		Link:             firstNonEmpty(c.Get(model.FieldLink), ref.Link),
		Host:             splitList(c.Get(model.FieldHost)),
		Source:           ref.Source,
		CreatedAt:        n.now().In(n.loc),
	}
	if ref.PubDate != nil {
		p := ref.PubDate.In(n.loc)
		e.PubDate = &p
	}

	n.placeOnMap(e, c)
	e.Categories = n.categories(e, c.Get(model.FieldCategories))

	if err := model.ValidateEvent(e); err != nil {
		field, msg := "event", err.Error()
		var ve *model.ValidationError
		if errors.As(err, &ve) && len(ve.Errors) > 0 {
			field, msg = ve.Errors[0].Field, ve.Errors[0].Message
		}
		return nil, &model.NormalizationError{Field: field, Message: msg, Err: err}
	}
	return e, nil
}

// placeOnMap sets the map location and coordinates. Coordinates stated by
// the candidate win over bucket coordinates; bucket points are jittered.
func (n *Normalizer) placeOnMap(e *model.Event, c model.Candidate) {
	bucket, ok := n.locator.Resolve(e.Location)
	if !ok {
		bucket, ok = n.locator.Resolve(c.Get(model.FieldMapLocation))
	}
	if ok {
		e.MapLocation = bucket.Name
	} else {
		e.MapLocation = model.MapLocationOther
	}

	lat, latErr := strconv.ParseFloat(c.Get(model.FieldLatitude), 64)
	lng, lngErr := strconv.ParseFloat(c.Get(model.FieldLongitude), 64)
	if latErr == nil && lngErr == nil {
		e.Latitude, e.Longitude = &lat, &lng
		return
	}
	if ok {
		jl, jg := Jitter(e.ID, bucket.Latitude, bucket.Longitude)
		e.Latitude, e.Longitude = &jl, &jg
	}
}

// categories merges the candidate's own labels with the keyword match.
func (n *Normalizer) categories(e *model.Event, explicit string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, raw := range strings.Split(explicit, ",") {
		if c := CleanCategory(raw); c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}

	text := strings.Join([]string{e.Title, e.EventDescription, strings.Join(e.Host, " "), e.Location}, " ")
	scored := n.categorizer.Categorize(text)
	if scored == model.CategoryOther && len(out) > 0 {
		return out
	}
	if c := CleanCategory(scored); c != "" && !seen[c] {
		out = append(out, c)
	}
	return out
}

// Commit inserts e unless an event with its identity key exists. The check
// and insert run in one transaction while holding the key's lock, so
// concurrent commits of the same key store one event.
func (n *Normalizer) Commit(ctx context.Context, e *model.Event) error {
	unlock := n.locks.Lock(e.IdentityKey)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, n.storeTimeout)
	defer cancel()

	return n.store.RunInTransaction(ctx, func(tx store.Store) error {
		_, err := tx.GetEventByKey(ctx, e.IdentityKey)
		switch {
		case err == nil:
			return model.ErrDuplicateEvent
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("lookup identity key: %w", err)
		}
		return tx.CreateEvent(ctx, e)
	})
}

// Process normalizes and commits one candidate. Failures are logged and
// classified, never returned; the batch goes on.
func (n *Normalizer) Process(ctx context.Context, c model.Candidate, ref Reference) Result {
	e, err := n.Normalize(c, ref)
	if err != nil {
		n.logger.Info("dropped candidate", "source", ref.Source, "title", c.Get(model.FieldTitle), "err", err)
		return Result{Outcome: OutcomeInvalid, Err: err}
	}

	err = n.Commit(ctx, e)
	switch {
	case err == nil:
		n.logger.Debug("stored event", "id", e.ID, "title", e.Title, "start", e.StartTime)
		return Result{Outcome: OutcomeStored, Event: e}
	case errors.Is(err, model.ErrDuplicateEvent):
		n.logger.Debug("skipped duplicate", "id", e.ID, "title", e.Title)
		return Result{Outcome: OutcomeDuplicate, Event: e, Err: err}
	default:
		if perr := n.ping(ctx); perr != nil {
			err = fmt.Errorf("%w: %w (ping: %v)", ErrStoreUnavailable, err, perr)
		}
		n.logger.Error("store write failed", "id", e.ID, "source", ref.Source, "err", err)
		return Result{Outcome: OutcomeStoreFailed, Event: e, Err: err}
	}
}

// ProcessAll processes the valid candidates of r in order. Malformed
// candidates are skipped without a result. It stops early when ctx ends or
// the store becomes unavailable.
func (n *Normalizer) ProcessAll(ctx context.Context, r *model.ExtractionResult, ref Reference) []Result {
	valid := r.ValidCandidates()
	out := make([]Result, 0, len(valid))
	for _, c := range valid {
		if ctx.Err() != nil {
			break
		}
		res := n.Process(ctx, c, ref)
		out = append(out, res)
		if errors.Is(res.Err, ErrStoreUnavailable) {
			break
		}
	}
	return out
}

// ping checks the store within the store timeout, even after ctx ends.
func (n *Normalizer) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.storeTimeout)
	defer cancel()
	return n.store.Ping(ctx)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
