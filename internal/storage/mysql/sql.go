package mysql

const upsertAirportPrefix = "INSERT INTO airports\n  (code, city_name, airport_name, country_code, time_zone_offset)\nVALUES "

// COALESCE keeps a known value when the backend sends NULL for it.
const upsertAirportOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  city_name        = COALESCE(VALUES(city_name), airports.city_name),\n" +
	"  airport_name     = COALESCE(VALUES(airport_name), airports.airport_name),\n" +
	"  country_code     = COALESCE(VALUES(country_code), airports.country_code),\n" +
	"  time_zone_offset = COALESCE(VALUES(time_zone_offset), airports.time_zone_offset),\n" +
	"  updated_at       = CURRENT_TIMESTAMP\n"

const getAirportsPrefix = `
SELECT code, city_name, airport_name, country_code, time_zone_offset
FROM airports
WHERE code IN `

const putSlotSQL = `
INSERT INTO offer_slots (slot_key, version, offer, saved_at, expires_at)
VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  version    = VALUES(version),
  offer      = VALUES(offer),
  saved_at   = VALUES(saved_at),
  expires_at = VALUES(expires_at)
`

const selectSlotForUpdateSQL = `
SELECT version, offer, saved_at, expires_at
FROM offer_slots
WHERE slot_key = ?
FOR UPDATE
`

const deleteSlotSQL = `DELETE FROM offer_slots WHERE slot_key = ?`

const purgeSlotsSQL = `DELETE FROM offer_slots WHERE expires_at <= ?`
