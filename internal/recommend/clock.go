// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package recommend

import "time"

// DefaultZoneName is the reference zone for ledger and cache timestamps.
const DefaultZoneName = "Asia/Kolkata"

// istOffset is Asia/Kolkata's fixed UTC offset (no DST).
const istOffset = 5*60*60 + 30*60

// LoadZone returns the named zone. When tzdata is unavailable it falls back
// to a fixed IST zone, which is exact for Asia/Kolkata.
func LoadZone(name string) *time.Location {
	if name == "" {
		name = DefaultZoneName
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("IST", istOffset)
	}
	return loc
}

// Truncate converts t to zone and drops sub-second precision so delta
// windows compare the same way in every store.
func Truncate(t time.Time, zone *time.Location) time.Time {
	if zone == nil {
		zone = time.UTC
	}
	return t.In(zone).Truncate(time.Second)
}
