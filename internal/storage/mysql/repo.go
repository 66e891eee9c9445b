package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"flightbook/internal/adapters/observability"
	"flightbook/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func ptrNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// Repo is the airport catalog and the MySQL offer slot.
type Repo struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Repo { return &Repo{db: db, now: time.Now} }

/********** airports **********/

func (r *Repo) UpsertAirports(ctx context.Context, as []domain.Airport) error {
	if len(as) == 0 {
		return nil
	}
	values := make([]string, 0, len(as))
	args := make([]any, 0, len(as)*5)
	for _, a := range as {
		code := strings.ToUpper(strings.TrimSpace(a.Code))
		if code == "" {
			continue
		}
		values = append(values, "(?,?,?,?,?)")
		args = append(args,
			code,
			valStr(a.CityName),
			valStr(a.AirportName),
			valStr(a.CountryCode),
			valStr(a.TimeZoneOffset),
		)
	}
	if len(values) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, upsertAirportPrefix+strings.Join(values, ",")+upsertAirportOnDup, args...)
	return err
}

func (r *Repo) GetAirports(ctx context.Context, codes []string) (map[string]domain.Airport, error) {
	out := map[string]domain.Airport{}
	if len(codes) == 0 {
		return out, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(codes)), ",")
	args := make([]any, len(codes))
	for i, c := range codes {
		args[i] = strings.ToUpper(c)
	}
	rows, err := r.db.QueryContext(ctx, getAirportsPrefix+"("+marks+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var a domain.Airport
		var city, name, country, tz sql.NullString
		if err := rows.Scan(&a.Code, &city, &name, &country, &tz); err != nil {
			return nil, err
		}
		a.CityName = ptrNull(city)
		a.AirportName = ptrNull(name)
		a.CountryCode = ptrNull(country)
		a.TimeZoneOffset = ptrNull(tz)
		out[a.Code] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

/********** offer slot **********/

// Put stores env under key until ttl elapses, replacing any earlier offer.
func (r *Repo) Put(ctx context.Context, key string, env domain.SlotEnvelope, ttl time.Duration) error {
	now := r.now().UTC()
	saved := env.SavedAt
	if saved.IsZero() {
		saved = now
	}
	_, err := r.db.ExecContext(ctx, putSlotSQL, key, env.Version, string(env.Offer), saved.UTC(), now.Add(ttl))
	if err == nil {
		observability.ObserveCache("offer_slot_mysql", "set")
	}
	return err
}

// Take reads and deletes the slot in one transaction. Expired rows are
// deleted and reported as absent.
func (r *Repo) Take(ctx context.Context, key string) (domain.SlotEnvelope, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.SlotEnvelope{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		env     domain.SlotEnvelope
		offer   string
		expires time.Time
	)
	err = tx.QueryRowContext(ctx, selectSlotForUpdateSQL, key).Scan(&env.Version, &offer, &env.SavedAt, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		observability.ObserveCache("offer_slot_mysql", "miss")
		return domain.SlotEnvelope{}, false, nil
	}
	if err != nil {
		return domain.SlotEnvelope{}, false, err
	}
	if _, err := tx.ExecContext(ctx, deleteSlotSQL, key); err != nil {
		return domain.SlotEnvelope{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return domain.SlotEnvelope{}, false, err
	}
	if !expires.After(r.now().UTC()) {
		observability.ObserveCache("offer_slot_mysql", "miss")
		return domain.SlotEnvelope{}, false, nil
	}
	observability.ObserveCache("offer_slot_mysql", "hit")
	env.Offer = domain.RawOffer(offer)
	return env, true, nil
}

// PurgeExpiredSlots removes slots nobody came back for.
func (r *Repo) PurgeExpiredSlots(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, purgeSlotsSQL, r.now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
