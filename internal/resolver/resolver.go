package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Vodeneev/evledger/internal/pkg/enums"
	"github.com/Vodeneev/evledger/internal/pkg/models"
)

// EntitySink persists registry changes.
type EntitySink interface {
	SaveEntity(ctx context.Context, e models.CanonicalEntity) error
	SaveAlias(ctx context.Context, a models.NameAlias) error
}

// Options configures a Resolver.
type Options struct {
	// FuzzyOnMiss runs the fuzzy fallback on the hot path as well.
	FuzzyOnMiss bool
	// OnMiss is called for every entity created because nothing matched.
	OnMiss func(e models.CanonicalEntity, rawName string)
	// Now is overridable in tests.
	Now func() time.Time
}

// Stats counts resolutions since the last DrainStats.
type Stats struct {
	Exact    int `json:"exact"`
	Fuzzy    int `json:"fuzzy"`
	Created  int `json:"created"`
	Enriched int `json:"enriched"`
}

type entityKey struct {
	kind      enums.EntityKind
	domain    string
	canonical string
}

// Resolver maps raw names onto canonical entities. It is the only component
// that creates entities and must be driven from a single goroutine.
type Resolver struct {
	reg  *Registry
	opts Options

	stats          Stats
	created        []models.CanonicalEntity
	pendingEntity  map[entityKey]models.CanonicalEntity
	pendingAliases []models.NameAlias
}

func New(reg *Registry, opts Options) *Resolver {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Resolver{
		reg:           reg,
		opts:          opts,
		pendingEntity: make(map[entityKey]models.CanonicalEntity),
	}
}

// Registry returns the registry the resolver writes to.
func (r *Resolver) Registry() *Registry {
	return r.reg
}

// Resolve returns the canonical name for rawName in (kind, domain), creating
// a new entity if nothing matches. It never fails.
func (r *Resolver) Resolve(kind enums.EntityKind, domain, rawName string, attrs models.Attrs) (string, bool) {
	return r.resolve(kind, domain, rawName, attrs, r.opts.FuzzyOnMiss)
}

// ResolveSubject resolves a player or side within a league.
func (r *Resolver) ResolveSubject(league, rawName string, attrs models.Attrs) (string, bool) {
	return r.Resolve(enums.KindSubject, league, rawName, attrs)
}

// ResolveTeam resolves a team within a league.
func (r *Resolver) ResolveTeam(league, rawName string) (string, bool) {
	return r.Resolve(enums.KindTeam, league, rawName, models.Attrs{})
}

// ResolveMarket resolves a market within a sport. A period such as "1Q" or
// "1H" is prepended so partial-game markets stay distinct.
func (r *Resolver) ResolveMarket(sport enums.Sport, rawName, period string) (string, bool) {
	return r.Resolve(enums.KindMarket, string(sport), WithPeriod(rawName, period), models.Attrs{})
}

// WithPeriod prefixes a market name with its period unless already present.
func WithPeriod(market, period string) string {
	period = strings.ToUpper(strings.TrimSpace(period))
	if period == "" {
		return market
	}
	if strings.HasPrefix(strings.ToUpper(market), period+" ") {
		return market
	}
	return period + " " + market
}

func (r *Resolver) resolve(kind enums.EntityKind, domain, rawName string, attrs models.Attrs, fuzzy bool) (string, bool) {
	if e, ok := r.reg.Lookup(kind, domain, rawName); ok {
		r.stats.Exact++
		r.enrich(e, attrs)
		return e.CanonicalName, false
	}

	name := NormalizeName(rawName)
	if fuzzy {
		p := policyFor(kind, domain)
		if best, ok := p.bestMatch(name, attrs, r.reg.candidates(kind, domain)); ok {
			r.stats.Fuzzy++
			if err := r.reg.AddAlias(kind, domain, rawName, best.Canonical); err != nil {
				slog.Warn("Failed to register alias", "kind", kind, "domain", domain, "alias", rawName, "error", err)
			} else {
				r.pendingAliases = append(r.pendingAliases, models.NameAlias{Kind: kind, Domain: domain, Alias: rawName, CanonicalName: best.Canonical})
			}
			if e, ok := r.reg.Entity(kind, domain, best.Canonical); ok {
				r.enrich(e, attrs)
			}
			slog.Debug("Fuzzy match accepted", "kind", kind, "domain", domain, "raw", rawName, "canonical", best.Canonical,
				"name_distance", best.NameDistance, "distance", best.Distance, "threshold", best.Threshold)
			return best.Canonical, false
		}
	}

	return r.create(kind, domain, rawName, attrs), true
}

func (r *Resolver) create(kind enums.EntityKind, domain, rawName string, attrs models.Attrs) string {
	e := models.CanonicalEntity{
		Kind:          kind,
		Domain:        domain,
		CanonicalName: displayName(rawName),
		CreatedAt:     r.opts.Now().UTC(),
	}
	if kind == enums.KindSubject {
		e.Attrs = attrs
	}
	r.reg.Add(e)

	r.stats.Created++
	r.created = append(r.created, e)
	r.pendingEntity[entityKey{kind, domain, e.CanonicalName}] = e
	r.pendingAliases = append(r.pendingAliases, models.NameAlias{Kind: kind, Domain: domain, Alias: NormalizeName(rawName), CanonicalName: e.CanonicalName})

	slog.Info("New entity created", "kind", kind, "domain", domain, "name", e.CanonicalName)
	if r.opts.OnMiss != nil {
		r.opts.OnMiss(e, rawName)
	}
	return e.CanonicalName
}

func (r *Resolver) enrich(e models.CanonicalEntity, attrs models.Attrs) {
	if e.Kind != enums.KindSubject || attrs == (models.Attrs{}) {
		return
	}
	updated, changed := r.reg.Enrich(e.Kind, e.Domain, e.CanonicalName, attrs)
	if !changed {
		return
	}
	r.stats.Enriched++
	r.pendingEntity[entityKey{updated.Kind, updated.Domain, updated.CanonicalName}] = updated
}

// SeedMarkets registers configured market aliases: sport -> alias -> canonical.
func (r *Resolver) SeedMarkets(aliases map[string]map[string]string) error {
	for sport, m := range aliases {
		for alias, canonical := range m {
			if _, ok := r.reg.Entity(enums.KindMarket, sport, canonical); !ok {
				r.reg.Add(models.CanonicalEntity{Kind: enums.KindMarket, Domain: sport, CanonicalName: canonical, CreatedAt: r.opts.Now().UTC()})
			}
			if err := r.reg.AddAlias(enums.KindMarket, sport, alias, canonical); err != nil {
				return fmt.Errorf("failed to seed market alias %q: %w", alias, err)
			}
		}
	}
	return nil
}

// Reference is one entry of a reference collection (roster, schedule).
type Reference struct {
	Name  string       `json:"name"`
	Attrs models.Attrs `json:"attrs"`
}

// ReconcileReport summarizes a Reconcile run.
type ReconcileReport struct {
	Exact   int      `json:"exact"`
	Fuzzy   int      `json:"fuzzy"`
	Created []string `json:"created"`
}

// Reconcile folds a reference collection into the registry using the fuzzy
// fallback for every name without an exact alias.
func (r *Resolver) Reconcile(kind enums.EntityKind, domain string, refs []Reference) ReconcileReport {
	var rep ReconcileReport
	before := r.stats
	for _, ref := range refs {
		if strings.TrimSpace(ref.Name) == "" {
			continue
		}
		name, created := r.resolve(kind, domain, ref.Name, ref.Attrs, true)
		if created {
			rep.Created = append(rep.Created, name)
		}
	}
	rep.Exact = r.stats.Exact - before.Exact
	rep.Fuzzy = r.stats.Fuzzy - before.Fuzzy
	return rep
}

// DrainStats returns counters accumulated since the previous call.
func (r *Resolver) DrainStats() Stats {
	s := r.stats
	r.stats = Stats{}
	return s
}

// DrainCreated returns entities created since the previous call.
func (r *Resolver) DrainCreated() []models.CanonicalEntity {
	out := r.created
	r.created = nil
	return out
}

// Flush persists pending entities and aliases. Pending changes are kept if
// the sink fails so the next flush retries them.
func (r *Resolver) Flush(ctx context.Context, sink EntitySink) error {
	if sink == nil {
		return nil
	}
	for key, e := range r.pendingEntity {
		if err := sink.SaveEntity(ctx, e); err != nil {
			return fmt.Errorf("failed to save entity %s: %w", e.CanonicalName, err)
		}
		delete(r.pendingEntity, key)
	}
	for i, a := range r.pendingAliases {
		if err := sink.SaveAlias(ctx, a); err != nil {
			r.pendingAliases = r.pendingAliases[i:]
			return fmt.Errorf("failed to save alias %s: %w", a.Alias, err)
		}
	}
	r.pendingAliases = nil
	return nil
}
